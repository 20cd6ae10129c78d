package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"sto-gateway/internal/domain"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/platform/sentinel"
)

// Provider categories a token may appoint.
const (
	CategoryKYC = "KYC"
	CategoryAML = "AML"
	CategoryCFT = "CFT"
)

// StatusWriter mutates buyer compliance statuses. Satisfied by
// InMemoryBuyerRegistry.
type StatusWriter interface {
	SetKYCStatus(ein domain.EIN, approved bool) error
	SetAMLStatus(ein domain.EIN, approved bool) error
	SetCFTStatus(ein domain.EIN, approved bool) error
}

// Compliance applies provider-submitted status updates. Only identities
// appointed for the matching category on the token may set a status.
type Compliance struct {
	writer   StatusWriter
	services ServiceRegistry
	identity IdentityRegistry
	logger   *slog.Logger
}

func NewCompliance(writer StatusWriter, services ServiceRegistry, identity IdentityRegistry, logger *slog.Logger) (*Compliance, error) {
	switch {
	case writer == nil:
		return nil, fmt.Errorf("status writer is required")
	case services == nil:
		return nil, fmt.Errorf("service registry is required")
	case identity == nil:
		return nil, fmt.Errorf("identity registry is required")
	case logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	return &Compliance{writer: writer, services: services, identity: identity, logger: logger}, nil
}

// SetStatus records a compliance verdict for the target identity on behalf of
// an appointed provider.
func (c *Compliance) SetStatus(ctx context.Context, tokenID uuid.UUID, caller domain.Address, target domain.EIN, category string, approved bool) error {
	ein, err := c.identity.ResolveIdentity(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller has no registered identity")
		}
		return fmt.Errorf("resolve identity: %w", err)
	}

	authorized, err := c.services.IsAuthorizedProvider(ctx, tokenID, ein, category)
	if err != nil {
		return fmt.Errorf("check provider appointment: %w", err)
	}
	if !authorized {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller is not an appointed %s provider", category)
	}

	switch category {
	case CategoryKYC:
		err = c.writer.SetKYCStatus(target, approved)
	case CategoryAML:
		err = c.writer.SetAMLStatus(target, approved)
	case CategoryCFT:
		err = c.writer.SetCFTStatus(target, approved)
	default:
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown provider category %q", category)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "buyer not registered")
		}
		return fmt.Errorf("set %s status: %w", category, err)
	}

	c.logger.InfoContext(ctx, "compliance status set",
		"token_id", tokenID,
		"provider_ein", ein,
		"target_ein", target,
		"category", category,
		"approved", approved,
	)
	return nil
}

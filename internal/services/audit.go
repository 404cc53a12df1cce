package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
	"github.com/tapcommerce/go-merchant-backend/internal/repo"
)

// LogDelivery persists one audit row for an inbound delivery, success or
// failure alike. The repo layer retries once with a minimal row; if even
// that fails, the error is logged and swallowed. Audit trouble must never
// change the HTTP response already determined by the pipeline.
func (s *WebhookService) LogDelivery(ctx context.Context, d *domain.WebhookDelivery) {
	if err := repo.LogDelivery(ctx, s.DB, d); err != nil {
		log.Error().Err(err).Str("endpoint", d.Endpoint).Msg("webhook audit log write failed")
	}
}

package service

import (
	"dialogues/internal/config"
	"dialogues/internal/metrics"
	"dialogues/internal/notify"
	"dialogues/internal/repository"
	"dialogues/pkg/logger"
)

type Services struct {
	User      UserService
	Dialogue  DialogueService
	Post      PostService
	Feed      FeedService
	Dashboard DashboardService
	RateLimit RateLimitService
	Audit     AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, notifier *notify.Notifier, m *metrics.Metrics, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	services := &Services{
		User:      NewUserService(repos.User, log),
		Dialogue:  NewDialogueService(repos.Dialogue, repos.Post, audit, notifier, log),
		Post:      NewPostService(repos.Dialogue, repos.Post, audit, notifier, m, log),
		Feed:      NewFeedService(repos.Dialogue, repos.Post, notifier, cfg.Stream, m, log),
		Dashboard: NewDashboardService(repos.Dialogue, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
		Audit:     audit,
	}

	return services
}

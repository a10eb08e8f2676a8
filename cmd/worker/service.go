package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridianpay/meridian-backend/internal/disbursement"
	"github.com/meridianpay/meridian-backend/internal/webhook"
	"github.com/meridianpay/meridian-backend/pkg/config"
	"github.com/meridianpay/meridian-backend/pkg/db"
	"github.com/meridianpay/meridian-backend/pkg/logger"
	"github.com/meridianpay/meridian-backend/pkg/redis"
)

const defaultPollInterval = 5 * time.Second

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Processor  *disbursement.Processor
	Dispatcher *webhook.Dispatcher
}

// Service runs the disbursement processor and webhook dispatcher side by
// side, each on its own poll cadence.
type Service struct {
	cfg        *config.Config
	logg       *logger.Logger
	db         *db.Client
	redis      *redis.Client
	processor  *disbursement.Processor
	dispatcher *webhook.Dispatcher
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Processor == nil {
		return nil, errors.New("disbursement processor is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("webhook dispatcher is required")
	}

	return &Service{
		cfg:        params.Config,
		logg:       params.Logger,
		db:         params.DB,
		redis:      params.Redis,
		processor:  params.Processor,
		dispatcher: params.Dispatcher,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.pollLoop(ctx, "disbursement-processor", s.cfg.Disbursement.PollInterval, s.runProcessor)
	}()
	go func() {
		errCh <- s.pollLoop(ctx, "webhook-dispatcher", s.cfg.Webhook.PollInterval, s.runDispatcher)
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "worker loop stopped unexpectedly", err)
			return err
		}
		return err
	}
}

// pollLoop runs fn on the given cadence. A failing pass is logged and the
// loop keeps going; only context cancellation stops it.
func (s *Service) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) (int, error)) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	loopCtx := s.logg.WithField(ctx, "loop", name)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		worked, err := fn(loopCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(loopCtx, "worker pass failed", err)
		}
		if worked > 0 {
			// Drain the backlog before going back to sleep.
			continue
		}
		select {
		case <-loopCtx.Done():
			return loopCtx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runProcessor(ctx context.Context) (int, error) {
	return s.processor.Run(ctx)
}

func (s *Service) runDispatcher(ctx context.Context) (int, error) {
	return s.dispatcher.Run(ctx)
}

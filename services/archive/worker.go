package archive

import (
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// StartWorker runs the archive queue worker in the background.
func StartWorker(redisOpt asynq.RedisClientOpt, archiver *Archiver, logger *zap.Logger) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(TypeArchiveRecording, archiver)

	go func() {
		logger.Info("starting archive worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("archive worker failed to start",
					zap.Int("attempt", attempts), zap.Int("max_attempts", maxAttempts), zap.Error(err))

				if attempts == maxAttempts {
					logger.Fatal("archive worker: max retry attempts reached")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

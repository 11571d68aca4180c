package chat

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper owns the background timers of the core: the file-expiry sweep, the
// completed-transfer purge, and the periodic storage-info push. It has an
// explicit start/stop lifecycle tied to service startup and shutdown, and it
// runs off the request path so a slow sweep never blocks message routing.
type Sweeper struct {
	svc  *Service
	log  *slog.Logger
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSweeper builds a stopped sweeper for the given service.
func NewSweeper(svc *Service, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		svc:  svc,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (w *Sweeper) Start() {
	go w.run()
	w.log.Info("sweeper started",
		"sweepInterval", w.svc.cfg.SweepInterval,
		"storagePushInterval", w.svc.cfg.StoragePushInterval)
}

// Stop halts the loop and waits for it to drain.
func (w *Sweeper) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Sweeper) run() {
	defer close(w.done)

	sweep := time.NewTicker(w.svc.cfg.SweepInterval)
	defer sweep.Stop()
	storage := time.NewTicker(w.svc.cfg.StoragePushInterval)
	defer storage.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-sweep.C:
			w.svc.SweepExpiredFiles()
			w.svc.PurgeTransfers()
		case <-storage.C:
			w.svc.PushStorageInfo()
		}
	}
}

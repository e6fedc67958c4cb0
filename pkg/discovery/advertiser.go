package discovery

import (
	"context"
	"log/slog"
	"sync"
)

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// AdvertiseProvisioning starts advertising the provisioning endpoint.
	AdvertiseProvisioning(ctx context.Context, info *ProvisioningInfo) error

	// AdvertiseBroker starts advertising the broker presence record.
	AdvertiseBroker(ctx context.Context, info *BrokerInfo) error

	// StopProvisioning retracts the provisioning record.
	StopProvisioning() error

	// StopBroker retracts the broker record.
	StopBroker() error

	// Shutdown retracts anything still advertised and stops the underlying
	// discovery transport.
	Shutdown()
}

// Runner supervises the advertisement lifecycle:
// Starting -> Advertising -> Unadvertising -> Stopped.
//
// Run publishes both records, waits for cancellation, and always retracts
// them and stops the transport on exit, whether shutdown came from the
// cancellation signal or from an advertise failure.
type Runner struct {
	advertiser   Advertiser
	provisioning ProvisioningInfo
	broker       BrokerInfo
	logger       *slog.Logger

	mu    sync.RWMutex
	state State

	// stopped is closed when the runner reaches StateStopped.
	stopped chan struct{}
}

// NewRunner creates an advertisement runner.
func NewRunner(advertiser Advertiser, provisioning ProvisioningInfo, broker BrokerInfo, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if provisioning.Version == "" {
		provisioning.Version = ProtocolVersion
	}
	return &Runner{
		advertiser:   advertiser,
		provisioning: provisioning,
		broker:       broker,
		logger:       logger,
		state:        StateStarting,
		stopped:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Stopped returns a channel closed once the runner has retracted its records
// and stopped the discovery transport.
func (r *Runner) Stopped() <-chan struct{} {
	return r.stopped
}

// Run advertises both records and blocks until ctx is cancelled. All
// failures are logged and reported via the return value; they are non-fatal
// to the hosting process, and cleanup runs regardless of how Run exits.
func (r *Runner) Run(ctx context.Context) error {
	r.setState(StateStarting)
	defer r.cleanup()

	if err := r.advertiser.AdvertiseProvisioning(ctx, &r.provisioning); err != nil {
		r.logger.Error("failed to advertise provisioning service", "error", err)
		return err
	}
	if err := r.advertiser.AdvertiseBroker(ctx, &r.broker); err != nil {
		r.logger.Error("failed to advertise broker presence", "error", err)
		return err
	}

	r.setState(StateAdvertising)
	r.logger.Info("mDNS records advertised",
		"provisioning_port", r.provisioning.Port,
		"broker_port", r.broker.Port,
		"instance_id", r.provisioning.InstanceID)

	// Cancellable wait, not a sleep.
	<-ctx.Done()
	return nil
}

// cleanup retracts both records and stops the transport. Errors are logged;
// there is nobody left to report them to.
func (r *Runner) cleanup() {
	r.setState(StateUnadvertising)

	if err := r.advertiser.StopProvisioning(); err != nil {
		r.logger.Warn("error retracting provisioning record", "error", err)
	}
	if err := r.advertiser.StopBroker(); err != nil {
		r.logger.Warn("error retracting broker record", "error", err)
	}
	r.advertiser.Shutdown()

	r.setState(StateStopped)
	close(r.stopped)
	r.logger.Info("mDNS advertising stopped")
}

func (r *Runner) setState(state State) {
	r.mu.Lock()
	old := r.state
	r.state = state
	r.mu.Unlock()
	if old != state {
		r.logger.Debug("advertiser state change",
			"old_state", old.String(), "new_state", state.String())
	}
}

package service

import "github.com/nerrad567/mqttservice/internal/infrastructure/config"

// Hooks are the extension points a concrete service implements.
//
// All hooks run on the supervisory goroutine (inside Service.Run), never
// concurrently with each other. They may call Service.Publish.
type Hooks interface {
	// ValidateConfiguration runs after the structural checks. A non-nil
	// error rejects the new configuration and keeps the active one.
	ValidateConfiguration(cfg *config.Config) error

	// ConfigurationReloading is called with the accepted configuration
	// before it becomes active.
	ConfigurationReloading(next *config.Config)

	// ConfigurationReloaded is called once the configuration is active and
	// the connection has been (re)started if needed.
	ConfigurationReloaded(cfg *config.Config)

	// Connected is called after each successful connect, once
	// subscriptions have been issued.
	Connected()

	// Disconnected is called when the connection is lost or a requested
	// disconnect completed.
	Disconnected()

	// Shutdown is called last, after the connection is stopped.
	Shutdown()
}

// NopHooks implements Hooks with no-ops. Embed it to implement only the
// hooks a service needs.
type NopHooks struct{}

func (NopHooks) ValidateConfiguration(*config.Config) error { return nil }
func (NopHooks) ConfigurationReloading(*config.Config)      {}
func (NopHooks) ConfigurationReloaded(*config.Config)       {}
func (NopHooks) Connected()                                 {}
func (NopHooks) Disconnected()                              {}
func (NopHooks) Shutdown()                                  {}

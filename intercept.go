package testable

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/host"
)

// ErrSetup reports that the interceptor was installed in the wrong order
// relative to the host runtime, or that a program was started without it.
// It is never recoverable at runtime.
var ErrSetup = errors.New("test context setup error")

var installMu sync.Mutex

// Install intercepts host.Default. See InstallOn.
func Install() error {
	return InstallOn(host.Default)
}

// MustInstall is like Install but panics on failure. It is intended for
// TestMain.
func MustInstall() {
	if err := Install(); err != nil {
		panic(err)
	}
}

// InstallOn replaces the initializer of p so that embedding any program
// constructed through it yields a *host.Descriptor instead of starting the
// application. The host runtime's own initializer must already be present.
// Installing on a platform that is already intercepted is a no-op. There is
// no uninstall.
func InstallOn(p *host.Platform) error {
	installMu.Lock()
	defer installMu.Unlock()

	if p == nil {
		return fmt.Errorf("%w: nil platform", ErrSetup)
	}
	current := p.Initializer()
	if current == nil {
		return fmt.Errorf("%w: interceptor installed before the host runtime's initializer", ErrSetup)
	}
	if intercepts(current) {
		return nil
	}
	p.SetInitializer(intercept)
	return nil
}

// intercepts reports whether initialize is the interceptor.
func intercepts(initialize host.Initializer) bool {
	return reflect.ValueOf(initialize).Pointer() == reflect.ValueOf(intercept).Pointer()
}

// intercept is the replacement initializer. The renderer is ignored.
func intercept(init host.InitFunc, update host.UpdateFunc, subscriptions host.SubscriptionsFunc, _ host.ViewFunc) host.Module {
	return host.ModuleFunc(func(_ host.Root, flags any) (app host.App, err error) {
		if init == nil || update == nil {
			return nil, fmt.Errorf("%w: application requires init and update", ErrSetup)
		}
		d := &host.Descriptor{
			Update: func(msg, model any) (step host.Step, err error) {
				defer host.Recover("update", &err)
				step.Model, step.Cmds = update(msg, model)
				return step, nil
			},
		}
		if subscriptions != nil {
			d.Subscriptions = func(model any) (tree effect.Tree, err error) {
				defer host.Recover("subscriptions", &err)
				return subscriptions(model), nil
			}
		}
		defer host.Recover("init", &err)
		d.Init.Model, d.Init.Cmds = init(flags)
		return d, nil
	})
}

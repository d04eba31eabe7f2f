// Package plugins loads restock hooks from a Go script interpreted at run
// time. A script may define any of
//
//	func InitRestockModal(kind string)
//	func CloseRestockModal()
//	func SubmitRestock() (bool, string)
//
// and the restock modal calls whichever ones are present.
package plugins

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/logging"
	"github.com/kingrea/comdesk/internal/modal"
)

const (
	initHookName   = "InitRestockModal"
	closeHookName  = "CloseRestockModal"
	submitHookName = "SubmitRestock"
)

// RestockHooks binds the hook functions a script defines.
type RestockHooks struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	init   reflect.Value
	close  reflect.Value
	submit reflect.Value
}

// LoadRestockHooks interprets the script at path. An empty path yields nil
// hooks and no error.
func LoadRestockHooks(path string, logger *zap.Logger) (*RestockHooks, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	logger = logging.OrNop(logger)
	code, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", trimmed)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(trimmed); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", trimmed, err)
	}
	h := &RestockHooks{path: trimmed, logger: logger}
	var bindErr error
	h.init, bindErr = lookupHook(i, initHookName, 1, 0)
	if bindErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", trimmed, bindErr)
	}
	h.close, bindErr = lookupHook(i, closeHookName, 0, 0)
	if bindErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", trimmed, bindErr)
	}
	h.submit, bindErr = lookupHook(i, submitHookName, 0, 2)
	if bindErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", trimmed, bindErr)
	}
	logger.Info("restock hooks loaded", zap.String("path", trimmed), zap.Strings("bound", h.Bound()))
	return h, nil
}

// lookupHook returns the zero Value when name is not defined, and an error
// when it is defined with the wrong shape.
func lookupHook(i *interp.Interpreter, name string, in, out int) (reflect.Value, error) {
	v, err := i.Eval(name)
	if err != nil || !v.IsValid() {
		return reflect.Value{}, nil
	}
	if v.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("%s is not a function", name)
	}
	t := v.Type()
	if t.NumIn() != in || t.NumOut() != out {
		return reflect.Value{}, fmt.Errorf("%s has signature %s", name, t)
	}
	return v, nil
}

// Path returns the script location.
func (h *RestockHooks) Path() string { return h.path }

// Bound lists the hooks the script defines.
func (h *RestockHooks) Bound() []string {
	var names []string
	for name, v := range map[string]reflect.Value{initHookName: h.init, closeHookName: h.close, submitHookName: h.submit} {
		if v.IsValid() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Provides reports whether the script defines the hook behind c.
func (h *RestockHooks) Provides(c modal.Capability) bool {
	if h == nil {
		return false
	}
	switch c {
	case modal.CapInit:
		return h.init.IsValid()
	case modal.CapClose:
		return h.close.IsValid()
	case modal.CapSubmit:
		return h.submit.IsValid()
	}
	return false
}

// InitRestock calls InitRestockModal(kind).
func (h *RestockHooks) InitRestock(kind api.RestockKind) {
	if _, err := h.call(initHookName, h.init, reflect.ValueOf(string(kind))); err != nil {
		h.logger.Warn("restock init hook failed", zap.Error(err))
	}
}

// CloseRestock calls CloseRestockModal().
func (h *RestockHooks) CloseRestock() {
	if _, err := h.call(closeHookName, h.close); err != nil {
		h.logger.Warn("restock close hook failed", zap.Error(err))
	}
}

// PrepareRestock hands the modal the script's submit hook. Script state is
// only touched under the hooks' lock, so the send may run off the event loop.
func (h *RestockHooks) PrepareRestock() modal.SendFunc {
	if h == nil || !h.submit.IsValid() {
		return nil
	}
	return h.SubmitRestock
}

// SubmitRestock calls SubmitRestock() and maps (ok, message) to a result.
// A hook that panics is reported as a transport failure.
func (h *RestockHooks) SubmitRestock(ctx context.Context) api.Result {
	if err := ctx.Err(); err != nil {
		return api.TransportFailed(err)
	}
	results, err := h.call(submitHookName, h.submit)
	if err != nil {
		return api.TransportFailed(err)
	}
	if len(results) != 2 {
		return api.TransportFailed(fmt.Errorf("%s not bound", submitHookName))
	}
	ok, _ := results[0].Interface().(bool)
	message := ""
	if results[1].Kind() == reflect.String {
		message = results[1].String()
	}
	if ok {
		return api.Succeeded(message)
	}
	return api.RejectedWith(message)
}

// call runs one hook. Script state is not safe for concurrent calls.
func (h *RestockHooks) call(name string, fn reflect.Value, args ...reflect.Value) (results []reflect.Value, err error) {
	if !fn.IsValid() {
		h.logger.Debug("restock hook not bound", zap.String("hook", name))
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn.Call(args), nil
}

package discovery

import (
	"fmt"

	"github.com/tidwall/gjson"

	"nbweave/internal/kernel"
)

// ParseKernelSpecsResponse translates a Jupyter server's /api/kernelspecs
// payload into connection candidates. The server's declared default spec
// additionally yields a DefaultKernelConnection. Specs without a language
// are dropped: they cannot participate in matching and must not poison
// the pool.
func ParseKernelSpecsResponse(data []byte) ([]kernel.ConnectionMetadata, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("kernelspecs: %w", ErrInvalidListing)
	}
	root := gjson.ParseBytes(data)
	specs := root.Get("kernelspecs")
	if !specs.IsObject() {
		return nil, fmt.Errorf("kernelspecs: missing kernelspecs object: %w", ErrInvalidListing)
	}
	defaultName := root.Get("default").String()

	var pool []kernel.ConnectionMetadata
	specs.ForEach(func(key, value gjson.Result) bool {
		spec := specFromListing(key.String(), value)
		if spec.Language == "" {
			return true
		}
		pool = append(pool, kernel.KernelSpecConnection{
			Spec:        spec,
			Interpreter: embeddedInterpreter(spec.Metadata),
		})
		if spec.Name == defaultName {
			pool = append(pool, kernel.DefaultKernelConnection{Spec: spec})
		}
		return true
	})
	return pool, nil
}

// specFromListing builds a KernelSpec from one kernelspecs entry.
func specFromListing(name string, value gjson.Result) kernel.KernelSpec {
	spec := kernel.KernelSpec{
		Name:          name,
		DisplayName:   value.Get("spec.display_name").String(),
		Language:      value.Get("spec.language").String(),
		InterruptMode: value.Get("spec.interrupt_mode").String(),
	}
	if n := value.Get("name").String(); n != "" {
		spec.Name = n
	}
	for _, arg := range value.Get("spec.argv").Array() {
		spec.Argv = append(spec.Argv, arg.String())
	}
	if env := value.Get("spec.env"); env.IsObject() {
		spec.Env = make(map[string]string)
		env.ForEach(func(k, v gjson.Result) bool {
			spec.Env[k.String()] = v.String()
			return true
		})
	}
	if meta := value.Get("spec.metadata"); meta.IsObject() {
		if m, ok := meta.Value().(map[string]any); ok {
			spec.Metadata = m
		}
	}
	return spec
}

// ParseSessionsResponse translates a Jupyter server's /api/sessions
// payload into live-kernel connection candidates. Sessions without a
// kernel are skipped.
func ParseSessionsResponse(data []byte, serverID string) ([]kernel.LiveKernelConnection, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("sessions: %w", ErrInvalidListing)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("sessions: expected array: %w", ErrInvalidListing)
	}

	var live []kernel.LiveKernelConnection
	root.ForEach(func(_, session gjson.Result) bool {
		k := session.Get("kernel")
		if !k.IsObject() || k.Get("id").String() == "" {
			return true
		}
		model := kernel.LiveKernelModel{
			ID:             k.Get("id").String(),
			Name:           k.Get("name").String(),
			LastActivity:   k.Get("last_activity").String(),
			Connections:    int(k.Get("connections").Int()),
			ExecutionState: k.Get("execution_state").String(),
		}
		if path := session.Get("path").String(); path != "" {
			model.SessionName = path
		} else {
			model.SessionName = session.Get("name").String()
		}
		live = append(live, kernel.LiveKernelConnection{Model: model, ServerID: serverID})
		return true
	})
	return live, nil
}

package audio

import "sync"

// MockResource is a test double for Resource.
type MockResource struct {
	mu sync.Mutex

	locator string
	gate    *Gate
	playErr []error // consumed one per Play call
	blocked bool    // every Play returns ErrPlaybackBlocked

	plays   int
	pauses  int
	rewinds int
	volume  float64
	loop    bool
	playing bool
	closed  bool
	onEnded func()
}

// NewMockResource creates a mock bound to locator.
func NewMockResource(locator string) *MockResource {
	return &MockResource{locator: locator, volume: 1}
}

func (m *MockResource) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.plays++
	if m.closed {
		return ErrResourceClosed
	}
	if m.blocked || !m.gate.Allowed() {
		return ErrPlaybackBlocked
	}
	if len(m.playErr) > 0 {
		err := m.playErr[0]
		m.playErr = m.playErr[1:]
		if err != nil {
			return err
		}
	}
	m.playing = true
	return nil
}

func (m *MockResource) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	m.playing = false
}

func (m *MockResource) Rewind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewinds++
}

func (m *MockResource) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
}

func (m *MockResource) SetLoop(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loop = loop
}

func (m *MockResource) OnEnded(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnded = fn
}

func (m *MockResource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.playing = false
	return nil
}

// Test helpers

// SetPlayErrors queues the results of the next Play calls.
func (m *MockResource) SetPlayErrors(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = errs
}

// SetBlocked makes every Play fail with ErrPlaybackBlocked.
func (m *MockResource) SetBlocked(blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = blocked
}

// SimulateEnd fires the natural end handler as the resource would.
func (m *MockResource) SimulateEnd() {
	m.mu.Lock()
	m.playing = false
	fn := m.onEnded
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (m *MockResource) Locator() string { return m.locator }

func (m *MockResource) Plays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays
}

func (m *MockResource) Pauses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauses
}

func (m *MockResource) Rewinds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewinds
}

func (m *MockResource) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *MockResource) Looping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loop
}

func (m *MockResource) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *MockResource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockBackend hands out MockResources and remembers them by locator.
type MockBackend struct {
	mu        sync.Mutex
	gate      *Gate
	resources map[string]*MockResource
	opened    []string
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{resources: make(map[string]*MockResource)}
}

// SetGate makes resources opened afterwards honour gate like a real backend.
func (b *MockBackend) SetGate(gate *Gate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = gate
}

// Open implements Backend. Opening the same locator twice returns a fresh
// resource; Resource returns the latest one.
func (b *MockBackend) Open(locator string) Resource {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := NewMockResource(locator)
	r.gate = b.gate
	b.resources[locator] = r
	b.opened = append(b.opened, locator)
	return r
}

// Resource returns the latest resource opened for locator, or nil.
func (b *MockBackend) Resource(locator string) *MockResource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resources[locator]
}

// Opened returns every locator passed to Open, in order.
func (b *MockBackend) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// Verify mocks implement the interfaces at compile time.
var (
	_ Resource = (*MockResource)(nil)
	_ Backend  = (*MockBackend)(nil)
)

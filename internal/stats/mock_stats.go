package stats

import "sync"

// MockStatsProvider records counter values in memory for tests.
type MockStatsProvider struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMockStatsProvider() *MockStatsProvider {
	return &MockStatsProvider{counts: make(map[string]int)}
}

func (m *MockStatsProvider) Incr(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
}

func (m *MockStatsProvider) Decr(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]--
}

func (m *MockStatsProvider) RegisterMetric(name string) {}

func (m *MockStatsProvider) Run() {}

func (m *MockStatsProvider) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

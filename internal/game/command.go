package game

import (
	"encoding/json"
	"sync"
	"time"

	"boardfx/internal/telemetry"
)

const (
	commandBufferOccupancyMetricKey = "game_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "game_command_buffer_overflow_total"
)

// Command is a move waiting to be applied by a Loop.
type Command struct {
	Player   string          `json:"player"`
	Move     string          `json:"move"`
	Arg      json.RawMessage `json:"arg,omitempty"`
	Seq      uint64          `json:"seq,omitempty"`
	IssuedAt time.Time       `json:"issuedAt"`
}

// CommandBuffer stores staged commands in a fixed-size ring. It is safe for
// concurrent producers and a single consumer.
type CommandBuffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	count   int
	metrics telemetry.Metrics
}

// NewCommandBuffer constructs a ring buffer with the provided capacity.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		data:    make([]Command, capacity),
		metrics: metrics,
	}
}

// Push stages a command, returning false if the buffer is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(commandBufferOverflowMetricKey, 1)
		}
		return false
	}
	b.data[(b.head+b.count)%len(b.data)] = cmd
	b.count++
	b.recordOccupancy()
	return true
}

// Drain returns all staged commands in FIFO order and clears the buffer.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		commands[i] = b.data[(b.head+i)%len(b.data)]
		b.data[(b.head+i)%len(b.data)] = Command{}
	}
	b.head = (b.head + b.count) % len(b.data)
	b.count = 0
	b.recordOccupancy()
	return commands
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) recordOccupancy() {
	if b.metrics != nil {
		b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.count))
	}
}

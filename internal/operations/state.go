package operations

import (
	"sync"
	"time"
)

// OperationStatus represents the overall run status
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// Context keys shared by the pipeline steps
const (
	ContextKeyDownloadLink = "download_link"
	ContextKeyDocumentPath = "document_path"
	ContextKeyOutputPath   = "output_path"
	ContextKeyRowCount     = "row_count"
	ContextKeySkipped      = "skipped_records"
)

// OperationState represents the complete state of one run
type OperationState struct {
	mu sync.RWMutex

	ID        string          `json:"id"`
	Status    OperationStatus `json:"status"`
	StartTime time.Time       `json:"start_time"`
	EndTime   *time.Time      `json:"end_time,omitempty"`

	// Step states in execution order
	Steps []*StepState `json:"steps"`

	// Values passed from one step to the next
	Context map[string]interface{} `json:"context"`

	Error error `json:"error,omitempty"`
}

// NewOperationState creates a new pending run state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// Start marks the run as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the run as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *OperationState) Cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
	p.Error = err
}

// AddStep appends a step state
func (p *OperationState) AddStep(state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps = append(p.Steps, state)
}

// GetStep returns the state of a step, nil when unknown
func (p *OperationState) GetStep(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.Steps {
		if s.ID == stepID {
			return s
		}
	}
	return nil
}

// GetContext retrieves a value from the run context
func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	val, ok := p.Context[key]
	return val, ok
}

// GetString retrieves a string value from the run context
func (p *OperationState) GetString(key string) string {
	val, _ := p.GetContext(key)
	s, _ := val.(string)
	return s
}

// GetInt retrieves an int value from the run context
func (p *OperationState) GetInt(key string) int {
	val, _ := p.GetContext(key)
	n, _ := val.(int)
	return n
}

// SetContext sets a value in the run context
func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// Duration returns the duration of the run
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// GetFailedSteps returns all failed steps
func (p *OperationState) GetFailedSteps() []*StepState {
	return p.stepsWithStatus(StepStatusFailed)
}

// GetCompletedSteps returns all completed steps
func (p *OperationState) GetCompletedSteps() []*StepState {
	return p.stepsWithStatus(StepStatusCompleted)
}

func (p *OperationState) stepsWithStatus(status StepStatus) []*StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*StepState
	for _, s := range p.Steps {
		if s.GetStatus() == status {
			out = append(out, s)
		}
	}
	return out
}

// Package loginflow orchestrates the login decision as an ordered
// pipeline of steps. Each step either advances the flow, returns early
// with a result, or rejects the attempt. The pipeline is the only entry
// point that can turn a credential or token into a session.
package loginflow

import (
	"context"
	"log/slog"
	"sort"

	"github.com/keelhq/authd/pkg/errors"
	"github.com/keelhq/authd/pkg/events"
	"github.com/keelhq/authd/pkg/exttoken"
	"github.com/keelhq/authd/pkg/login"
	"github.com/keelhq/authd/pkg/notification"
	"github.com/keelhq/authd/pkg/session"
	"github.com/keelhq/authd/pkg/twofa"
	"github.com/keelhq/authd/pkg/user"
)

// Step represents a single step in the login flow
type Step interface {
	// Name returns the unique name of this step
	Name() string

	// Order returns the execution order (lower numbers execute first)
	Order() int

	// Execute performs the step's logic
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)

	// ShouldSkip determines if this step should be skipped based on current context
	ShouldSkip(ctx context.Context, flowContext *FlowContext) bool
}

// FlowContext carries state between login flow steps
type FlowContext struct {
	// Input data
	Request Request

	// Current state
	Result *Result
	User   user.User

	// ExternallyAuthenticated is set by the external token step so later
	// steps know the trust decision was delegated to an external issuer.
	ExternallyAuthenticated bool

	// Step-specific data
	StepData map[string]interface{}

	// Services (injected by the flow executor)
	Services *ServiceDependencies
}

// StepResult represents the result of executing a login flow step
type StepResult struct {
	// Continue indicates whether the flow should continue to the next step
	Continue bool

	// EarlyReturn indicates the flow should return immediately with the current result
	EarlyReturn bool

	// Error rejects the attempt with the given error
	Error error

	// Data can contain step-specific data to be stored in FlowContext.StepData
	Data map[string]interface{}
}

// ServiceDependencies contains all the services needed by login flow steps
type ServiceDependencies struct {
	LoginService     *login.LoginService
	TwoFactorService *twofa.Service
	TokenVerifier    *exttoken.Verifier
	SessionManager   *session.Manager
	UserRepository   user.Repository
	Emitter          events.Emitter
	Notices          *notification.Manager
	Logger           *slog.Logger

	// Policy holds the configurable trust decisions
	Policy Policy
}

// Policy holds the configurable trust decisions of the login flow.
type Policy struct {
	// ExternalBypassMFA controls whether identities authenticated by a
	// trusted external issuer skip the MFA step. Bypassing moves the
	// second-factor responsibility to the external issuer.
	ExternalBypassMFA bool

	// DefaultRole is assigned to just-in-time provisioned users
	DefaultRole user.Role
}

// StepRegistry manages and orders login flow steps
type StepRegistry struct {
	steps []Step
}

// NewStepRegistry creates a new step registry
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		steps: make([]Step, 0),
	}
}

// AddStep adds a step to the registry
func (r *StepRegistry) AddStep(step Step) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns steps sorted by their order
func (r *StepRegistry) GetOrderedSteps() []Step {
	orderedSteps := make([]Step, len(r.steps))
	copy(orderedSteps, r.steps)

	sort.Slice(orderedSteps, func(i, j int) bool {
		return orderedSteps[i].Order() < orderedSteps[j].Order()
	})

	return orderedSteps
}

// FlowExecutor orchestrates the execution of login flow steps
type FlowExecutor struct {
	registry *StepRegistry
	services *ServiceDependencies
}

// NewFlowExecutor creates a new flow executor
func NewFlowExecutor(registry *StepRegistry, services *ServiceDependencies) *FlowExecutor {
	return &FlowExecutor{
		registry: registry,
		services: services,
	}
}

// Execute runs the complete login flow. Any step failure rejects the
// attempt; the step-specific cause is logged but the returned result
// carries only the generic authentication error so callers cannot probe
// which stage rejected them.
func (e *FlowExecutor) Execute(ctx context.Context, request Request) Result {
	flowContext := &FlowContext{
		Request:  request,
		Result:   &Result{},
		StepData: make(map[string]interface{}),
		Services: e.services,
	}

	steps := e.registry.GetOrderedSteps()

	for _, step := range steps {
		if step.ShouldSkip(ctx, flowContext) {
			continue
		}

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			e.services.Logger.Error("Login flow step failed",
				"step", step.Name(), "err", err)
			flowContext.Result.Err = errors.InternalWrap(err, "login flow failed")
			return *flowContext.Result
		}

		if stepResult.Error != nil {
			// The true cause stays in the logs. Internal errors keep
			// their code so the transport can answer 500 instead of 401.
			e.services.Logger.Info("Login attempt rejected",
				"step", step.Name(), "reason", stepResult.Error)
			flowContext.Result.Err = collapseToAuthError(stepResult.Error)
			return *flowContext.Result
		}

		if stepResult.Data != nil {
			for key, value := range stepResult.Data {
				flowContext.StepData[key] = value
			}
		}

		if stepResult.EarlyReturn {
			return *flowContext.Result
		}

		if !stepResult.Continue {
			break
		}
	}

	return *flowContext.Result
}

// FlowBuilder provides a fluent interface for building login flows
type FlowBuilder struct {
	registry *StepRegistry
}

// NewFlowBuilder creates a new flow builder
func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{
		registry: NewStepRegistry(),
	}
}

// AddStep adds a step to the flow
func (b *FlowBuilder) AddStep(step Step) *FlowBuilder {
	b.registry.AddStep(step)
	return b
}

// Build creates a flow executor with the configured steps
func (b *FlowBuilder) Build(services *ServiceDependencies) *FlowExecutor {
	return NewFlowExecutor(b.registry, services)
}

// Predefined step orders
const (
	OrderExternalToken    = 100
	OrderCredentialCheck  = 200
	OrderMFAValidation    = 300
	OrderSessionIssue     = 400
	OrderSuccessRecording = 500
)

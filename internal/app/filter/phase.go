package filter

import "context"

// PhaseFilter accepts submissions only while the game is running.
type PhaseFilter struct{}

func (f *PhaseFilter) Name() string {
	return "phase_filter"
}

func (f *PhaseFilter) Description() string {
	return "Accepts submissions only during the hiding and searching phases"
}

func (f *PhaseFilter) ReturnCodes() []string {
	return []string{"not_running"}
}

func (f *PhaseFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PhaseFilter) AppliesTo(kind Kind) bool {
	return true
}

func (f *PhaseFilter) Check(ctx context.Context, sub Submission, env Env) Result {
	if env.Session == nil || !env.Session.Status.IsActive() {
		return Reject("not_running")
	}
	return Accept()
}

func init() {
	Register("phase_filter", func() Filter {
		return &PhaseFilter{}
	})
}

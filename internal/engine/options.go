package engine

// Options controls one validation or import run. The zero value is not
// usable; build it with DefaultOptions and override fields as needed so new
// knobs pick up sane defaults.
type Options struct {
	// Repositories is the configured repository set; a row naming any other
	// repository fails structural validation.
	Repositories []string

	// ProjectLabel, when set, is appended to every created issue's labels.
	ProjectLabel string

	// NetworkChecks enables the referential validation pass. Disabling it
	// gives a fast format-only dry run with no remote calls.
	NetworkChecks bool

	// FailOnMissingMilestone makes an unresolved milestone an error instead
	// of a warn-and-auto-create.
	FailOnMissingMilestone bool

	// RequireAssignee makes an unresolvable assignee an error instead of a
	// warning.
	RequireAssignee bool

	// MaxRetryAttempts bounds retries of transient remote failures before a
	// failure is demoted to permanent.
	MaxRetryAttempts int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		NetworkChecks:          true,
		FailOnMissingMilestone: false,
		RequireAssignee:        false,
		MaxRetryAttempts:       3,
	}
}

func (o Options) knownRepo(repo string) bool {
	for _, r := range o.Repositories {
		if r == repo {
			return true
		}
	}
	return false
}

package types

// JobSpec represents a scheduled job declaration from the configuration file
type JobSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Schedule    string            `yaml:"schedule" json:"schedule"`
	Command     string            `yaml:"command" json:"command"`
	Description string            `yaml:"description,omitempty" json:"description"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Env         map[string]string `yaml:"env,omitempty" json:"-"`
}

// JobError reports a per-job problem that does not abort the surrounding pass
type JobError struct {
	JobName string `json:"job_name"`
	Reason  string `json:"reason"`
}

func (e JobError) Error() string {
	return e.JobName + ": " + e.Reason
}

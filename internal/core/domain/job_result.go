package domain

// JobResultKind tags which variant of the JobResult sum type a result holds.
type JobResultKind int

const (
	JobComplete JobResultKind = iota
	JobPartial
	JobError
)

func (k JobResultKind) String() string {
	switch k {
	case JobComplete:
		return "complete"
	case JobPartial:
		return "partial"
	case JobError:
		return "error"
	default:
		return "unknown"
	}
}

// JobResult is the outcome of one job execution: exactly one of Complete,
// Partial or Error, selected by Kind. SizeWritten in the Partial case is
// strictly greater than the job's starting offset.
type JobResult struct {
	Kind        JobResultKind
	Provider    Provider
	SizeWritten int64
	Err         error
}

func CompleteResult(provider Provider) JobResult {
	return JobResult{Kind: JobComplete, Provider: provider}
}

func PartialResult(provider Provider, sizeWritten int64) JobResult {
	return JobResult{Kind: JobPartial, Provider: provider, SizeWritten: sizeWritten}
}

func ErrorResult(provider Provider, err error) JobResult {
	return JobResult{Kind: JobError, Provider: provider, Err: err}
}

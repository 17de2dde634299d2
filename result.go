package nbsftp

// Result is the outcome of a session operation.
// The zero value is a failed Result with StatusError and no message.
type Result struct {
	status  Status
	message string
}

// NewResult returns a Result with the given status and message.
func NewResult(status Status, message string) Result {
	return Result{status: status, message: message}
}

func success() Result {
	return Result{status: StatusSuccess}
}

// Status returns the classification of the outcome.
func (r Result) Status() Status { return r.status }

// Message returns the diagnostic text that came with the outcome, if any.
func (r Result) Message() string { return r.message }

// IsOk reports whether the operation succeeded.
func (r Result) IsOk() bool { return r.status == StatusSuccess }

func (r Result) String() string {
	if r.message == "" {
		return r.status.String()
	}

	return r.status.String() + ": " + r.message
}

// Err returns nil when r is Ok, and an *Error carrying r otherwise.
func (r Result) Err() error {
	if r.IsOk() {
		return nil
	}

	return &Error{Status: r.status, Message: r.message}
}

// Error is the error form of a failed Result.
type Error struct {
	Status  Status
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "nbsftp: " + e.Status.String()
	}

	return "nbsftp: " + e.Status.String() + ": " + e.Message
}

// PathResult is a Result carrying a remote path.
// The path is only populated when the Result is Ok.
type PathResult struct {
	Result
	path string
}

// NewPathResult gates path on result.
func NewPathResult(result Result, path string) PathResult {
	if !result.IsOk() {
		path = ""
	}

	return PathResult{Result: result, path: path}
}

// Path returns the resolved path, or "" when the operation failed.
func (r PathResult) Path() string { return r.path }

// AttributesResult is a Result carrying the metadata of one remote entry.
type AttributesResult struct {
	Result
	attributes Attributes
}

// NewAttributesResult gates attributes on result.
func NewAttributesResult(result Result, attributes Attributes) AttributesResult {
	if !result.IsOk() {
		attributes = Attributes{}
	}

	return AttributesResult{Result: result, attributes: attributes}
}

// Attributes returns the metadata, or the zero Attributes when the operation failed.
func (r AttributesResult) Attributes() Attributes { return r.attributes }

// ListingResult is a Result carrying the entries of a remote directory.
type ListingResult struct {
	Result
	listing []Attributes
}

// NewListingResult gates listing on result.
func NewListingResult(result Result, listing []Attributes) ListingResult {
	if !result.IsOk() {
		listing = nil
	}

	return ListingResult{Result: result, listing: listing}
}

// Listing returns the directory entries, or nil when the operation failed.
func (r ListingResult) Listing() []Attributes { return r.listing }

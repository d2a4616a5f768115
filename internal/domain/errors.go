package domain

// errors.go defines the failure taxonomy shared by every layer.
//
// Each sentinel carries a Kind (how callers should react) and a Code (what
// support staff quote back). Callers wrap sentinels with fmt.Errorf and %w so
// that errors.Is keeps working and the message keeps its context.
//
// # Codes
//
//	CLM001 - job already claimed                 (Ownership)
//	CLM002 - claim owned by another user         (Ownership)
//	CLM003 - claim not found                     (NotFound)
//	CLM004 - claim cannot be completed           (Conflict)
//	CLM005 - transition not allowed from status  (Conflict)
//	CLM006 - job data incomplete, cannot start   (Validation)
//	CLM007 - claim changed concurrently          (Conflict)
//	FST001 - file set not found                  (NotFound)
//	FST002 - duplicate file set id               (Invariant)
//	REG001 - job registry did not respond        (RemoteDependency)
//	REG002 - job registry timed out              (RemoteDependency)
//	REG003 - job unknown to registry             (NotFound)
//	FILE001..FILE006 - per-file processing       (FileProcessing)
//	VAL001..VAL006 - request validation          (Validation)
//	UPL002 - too many concurrent uploads         (Busy)

import "errors"

// Kind groups errors by how a caller is expected to react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindOwnership
	KindNotFound
	KindValidation
	KindRemoteDependency
	KindFileProcessing
	KindConflict
	KindInvariant
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindOwnership:
		return "ownership"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindRemoteDependency:
		return "remote_dependency"
	case KindFileProcessing:
		return "file_processing"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant"
	case KindBusy:
		return "busy"
	default:
		return "internal"
	}
}

// Error is a classified failure. Sentinels below are compared by identity.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAlreadyClaimed     = &Error{Kind: KindOwnership, Code: "CLM001", Message: "job is already claimed"}
	ErrNotOwner           = &Error{Kind: KindOwnership, Code: "CLM002", Message: "claim is owned by another user"}
	ErrClaimNotFound      = &Error{Kind: KindNotFound, Code: "CLM003", Message: "claim not found"}
	ErrCantComplete       = &Error{Kind: KindConflict, Code: "CLM004", Message: "claim cannot be completed"}
	ErrInvalidTransition  = &Error{Kind: KindConflict, Code: "CLM005", Message: "transition not allowed"}
	ErrUnverifiable       = &Error{Kind: KindValidation, Code: "CLM006", Message: "job data incomplete, claim cannot be started"}
	ErrStaleClaim         = &Error{Kind: KindConflict, Code: "CLM007", Message: "claim was modified concurrently"}
	ErrFileSetNotFound    = &Error{Kind: KindNotFound, Code: "FST001", Message: "file set not found"}
	ErrDuplicateFileSet   = &Error{Kind: KindInvariant, Code: "FST002", Message: "file set already attached"}
	ErrRegistryNoResponse = &Error{Kind: KindRemoteDependency, Code: "REG001", Message: "job registry did not respond"}
	ErrRegistryTimeout    = &Error{Kind: KindRemoteDependency, Code: "REG002", Message: "job registry timed out"}
	ErrJobNotRegistered   = &Error{Kind: KindNotFound, Code: "REG003", Message: "job is not known to the registry"}

	ErrMissingPath          = &Error{Kind: KindFileProcessing, Code: "FILE001", Message: "file has no path"}
	ErrUnsupportedExtension = &Error{Kind: KindFileProcessing, Code: "FILE002", Message: "unsupported file extension"}
	ErrUnimplemented        = &Error{Kind: KindFileProcessing, Code: "FILE003", Message: "file type not implemented"}
	ErrNotRecognized        = &Error{Kind: KindFileProcessing, Code: "FILE004", Message: "data file not recognized"}
	ErrMissingColumn        = &Error{Kind: KindFileProcessing, Code: "FILE005", Message: "missing required column"}
	ErrStorage              = &Error{Kind: KindFileProcessing, Code: "FILE006", Message: "archive storage failure"}

	ErrInvalidJobID    = &Error{Kind: KindValidation, Code: "VAL001", Message: "invalid job id"}
	ErrMissingUsername = &Error{Kind: KindValidation, Code: "VAL002", Message: "username is required"}
	ErrUploadTooLarge  = &Error{Kind: KindValidation, Code: "VAL003", Message: "upload exceeds maximum size"}
	ErrEmptyUpload     = &Error{Kind: KindValidation, Code: "VAL004", Message: "upload is empty"}
	ErrBadParameter    = &Error{Kind: KindValidation, Code: "VAL005", Message: "invalid request parameter"}
	ErrNoFile          = &Error{Kind: KindValidation, Code: "VAL006", Message: "no file provided"}
	ErrTooManyUploads  = &Error{Kind: KindBusy, Code: "UPL002", Message: "too many concurrent uploads, please try again later"}
)

// KindOf reports the Kind of the first classified error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the support code of err, or "" when unclassified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

package pipeline

const (
	// DefaultModelName is the Gemini model used for the PDF fallback.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultFilename names uploads that arrive without one.
	DefaultFilename = "upload.bin"
)

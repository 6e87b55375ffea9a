package mcqsheet

import "errors"

var (
	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("mcqsheet: unsupported document format")

	// ErrConversionFailed is returned when the document could not be turned
	// into markup at all.
	ErrConversionFailed = errors.New("mcqsheet: document conversion failed")

	// ErrConverterNotFound is returned when the pandoc converter was
	// requested but is not installed.
	ErrConverterNotFound = errors.New("mcqsheet: pandoc not found")

	// ErrNoRecords is returned when a document yields no usable questions.
	// Callers usually show NoRecordsHelp alongside it.
	ErrNoRecords = errors.New("mcqsheet: no MCQs found in the document")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("mcqsheet: invalid configuration")

	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("mcqsheet: run not found")

	// ErrStoreDisabled is returned by question bank operations when the
	// engine was created without a store.
	ErrStoreDisabled = errors.New("mcqsheet: question bank disabled")
)

// NoRecordsHelp describes the two document layouts the extractor accepts.
const NoRecordsHelp = `No MCQs found in the document. Please ensure your document follows one of these patterns:

Pattern 1 (General MCQ):
১. Question text    (Serial numbers can be in Bengali ১, ২, ৩... or English 1, 2, 3...)
[টপিক: Topic] or [Topic: Your topic] or [Topic information]
[Easy] or [Medium] or [Hard] or [Difficulty: Level]
[Board-Year] or [Reference: Source] or [Institute: Name]
ক. Option A
খ. Option B
গ. Option C
ঘ. Option D
উত্তর: Answer
[Hint: Hint text]
[Explaination: Explanation text]

Pattern 2 (MCQs with multiple choice answers):
১. Question text with statements    (Serial numbers can be in Bengali ১, ২, ৩... or English 1, 2, 3...)
[টপিক: Topic] or [Topic: Your topic] or [Topic information]
[Easy] or [Medium] or [Hard] or [Difficulty: Level]
[Board-Year] or [Reference: Source] or [Institute: Name]
i. Statement 1
ii. Statement 2
iii. Statement 3
নিচের কোনটি সঠিক?
ক. i and ii
খ. i and iii
গ. ii and iii
ঘ. i, ii and iii
উত্তর: Answer
[Hint: Hint text]
[Explaination: Explanation text]`

package domain

const (
	// MiB is one mebibyte
	MiB = 1 << 20

	// MaxImageBytes is the upload limit for image/* files
	MaxImageBytes = 5 * MiB

	// MaxVideoBytes is the upload limit for video/* files
	MaxVideoBytes = 50 * MiB
)

// Console texts shown in session logs
const (
	GreetingText          = "Hello! Upload an image or video and I'll analyze it 😊"
	ThinkingText          = "🤖 Thinking..."
	AnalyzingText         = "🔍 Analyzing media..."
	ChatErrorText         = "❌ Error connecting to AI service"
	ChatTimeoutText       = "⏱️ The request timed out. Please try again."
	UploadTimeoutText     = "⏱️ Upload timed out. Please try again."
	NoFacesText           = "🙈 No faces detected in this media."
	AnnotatedImageCaption = "Annotated result (click to open)"
	RestoreFailedText     = "⚠️ Saved conversations could not be restored and were reset."
)

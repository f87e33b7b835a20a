package domain

// ChatOutcome is the settled result of a chat call.
// Exactly one of ReplyText or Failure is meaningful.
type ChatOutcome struct {
	ReplyText string
	Failure   *Failure
}

// OK reports whether the call succeeded
func (o ChatOutcome) OK() bool {
	return o.Failure == nil
}

// Detection is one face found by the analysis service
type Detection struct {
	Age        float64
	Gender     string
	Emotion    string
	Confidence float64
}

// Identity is the recognised person, when the service knows them
type Identity struct {
	Name       string
	Title      string
	Authorized bool
}

// UploadOutcome is the settled result of a media upload. It is never mutated after
// creation, only projected into messages.
//
// Detections is nil when the service sent no results and non-nil (possibly empty)
// when it did.
type UploadOutcome struct {
	Success           bool
	Message           string
	AnnotatedImageURL string
	Detections        []Detection
	Identity          *Identity
	BotComment        string
	Failure           *Failure
}

// ErrorMessage returns the failure message, if any
func (o UploadOutcome) ErrorMessage() string {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Message
}

// MediaFile is a candidate upload
type MediaFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the byte length of the file
func (f MediaFile) Size() int64 {
	return int64(len(f.Data))
}

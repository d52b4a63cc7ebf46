package models

// ActionKind is the closed enumeration of processing operations a
// pipeline step can request. The wire representation (REST body,
// broker envelope, database column) is always the lowercase string.
type ActionKind string

const (
	ActionThumbnail      ActionKind = "thumbnail"
	ActionImageConvert   ActionKind = "image_convert"
	ActionImageCompress  ActionKind = "image_compress"
	ActionVideoThumbnail ActionKind = "video_thumbnail"
	ActionVideoPreview   ActionKind = "video_preview"
	ActionVideoConvert   ActionKind = "video_convert"
	ActionCompress       ActionKind = "compress"
	ActionMetadata       ActionKind = "metadata"
	ActionEncrypt        ActionKind = "encrypt"
	ActionDecrypt        ActionKind = "decrypt"
	ActionVirusScan      ActionKind = "virus_scan"
	ActionAITag          ActionKind = "ai_tag"
)

// Queue names, fixed per the broker's declared topology.
const (
	QueueImage    = "image_queue"
	QueueVideo    = "video_queue"
	QueueSecurity = "security_queue"
	QueueAI       = "ai_queue"
	QueueMetadata = "metadata_queue"
	QueueGeneric  = "generic_queue"
)

// AllQueues lists every queue the broker adapter must declare durable,
// whether or not a worker fleet currently binds to it.
var AllQueues = []string{QueueImage, QueueVideo, QueueSecurity, QueueAI, QueueMetadata, QueueGeneric}

// actionQueues is the static action-to-queue routing table.
var actionQueues = map[ActionKind]string{
	ActionThumbnail:      QueueImage,
	ActionImageConvert:   QueueImage,
	ActionImageCompress:  QueueImage,
	ActionMetadata:       QueueImage,
	ActionVideoThumbnail: QueueVideo,
	ActionVideoPreview:   QueueVideo,
	ActionVideoConvert:   QueueVideo,
	ActionCompress:       QueueSecurity,
	ActionEncrypt:        QueueSecurity,
	ActionDecrypt:        QueueSecurity,
	ActionVirusScan:      QueueSecurity,
	ActionAITag:          QueueAI,
}

// ParseAction converts s to an ActionKind and reports whether it names
// a known action.
func ParseAction(s string) (ActionKind, bool) {
	a := ActionKind(s)
	_, ok := actionQueues[a]
	return a, ok
}

// Queue returns the queue this action routes to, or the default
// image_queue for anything outside the closed enumeration. Callers
// that accept actions from the REST surface should reject unknown
// actions with ParseAction before ever reaching this fallback;
// Queue's default exists for internal callers that construct a job
// row directly (see §4.D "unknown" row of the routing table).
func (a ActionKind) Queue() string {
	if q, ok := actionQueues[a]; ok {
		return q
	}
	return QueueImage
}

// ProducesArtifact reports whether a successful run of this action is
// expected to write a derived File (as opposed to a side-effect-only
// action like VIRUS_SCAN or AI_TAG).
func (a ActionKind) ProducesArtifact() bool {
	switch a {
	case ActionVirusScan, ActionAITag, ActionMetadata:
		return false
	default:
		return true
	}
}

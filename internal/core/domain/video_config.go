package domain

// VideoSystem identifies the conferencing backend a session runs on.
type VideoSystem string

const (
	SystemGoogleMeet VideoSystem = "google-meet"
	SystemHighmesh   VideoSystem = "highmesh"
)

// KnownSystems lists every backend the service can hand sessions to.
var KnownSystems = []VideoSystem{SystemGoogleMeet, SystemHighmesh}

func (s VideoSystem) Valid() bool {
	for _, known := range KnownSystems {
		if s == known {
			return true
		}
	}
	return false
}

type VideoQuality string

const (
	QualitySD VideoQuality = "sd"
	QualityHD VideoQuality = "hd"
)

func (q VideoQuality) Valid() bool {
	return q == QualitySD || q == QualityHD
}

type RecordingPolicy struct {
	AutoStart   bool   `json:"autoStart"`
	StoragePath string `json:"storagePath"`
}

type WaitingRoom struct {
	Background    string `json:"background"`
	AmbienceAudio string `json:"ambienceAudio"`
}

// VideoSystemConfig is the single persisted document describing the active
// video backend. It is replaced wholesale on every write.
type VideoSystemConfig struct {
	DefaultSystem VideoSystem     `json:"defaultSystem"`
	Options       []VideoSystem   `json:"options"`
	VideoQuality  VideoQuality    `json:"videoQuality"`
	Recording     RecordingPolicy `json:"recording"`
	WaitingRoom   *WaitingRoom    `json:"waitingRoom,omitempty"`
}

// DefaultVideoSystemConfig returns the canonical document served whenever the
// persisted one cannot be read.
func DefaultVideoSystemConfig() VideoSystemConfig {
	return VideoSystemConfig{
		DefaultSystem: SystemGoogleMeet,
		Options:       []VideoSystem{SystemGoogleMeet, SystemHighmesh},
		VideoQuality:  QualityHD,
		Recording: RecordingPolicy{
			AutoStart:   false,
			StoragePath: "data/recordings",
		},
		WaitingRoom: &WaitingRoom{
			Background:    "/assets/waiting-room/background.jpg",
			AmbienceAudio: "/assets/waiting-room/ambience.mp3",
		},
	}
}

// HasOption reports whether system is one of the configured options.
func (c VideoSystemConfig) HasOption(system VideoSystem) bool {
	for _, opt := range c.Options {
		if opt == system {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't mutate a shared document.
func (c VideoSystemConfig) Clone() VideoSystemConfig {
	out := c
	if c.Options != nil {
		out.Options = append([]VideoSystem(nil), c.Options...)
	}
	if c.WaitingRoom != nil {
		wr := *c.WaitingRoom
		out.WaitingRoom = &wr
	}
	return out
}

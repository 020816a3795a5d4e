package model

// Sound identifies one of the alert sounds.
type Sound string

const (
	SoundCheckEyes    Sound = "check_eyes"
	SoundCheckPosture Sound = "check_posture"
	SoundMoreEmotion  Sound = "more_emotion"
)

// Status texts shown in the main window.
const (
	StatusDefault      = "hi"
	StatusCheckEyes    = "CHECK EYES!!"
	StatusCheckPosture = "CHECK POSTURE!!"
	StatusMoreEmotion  = "MORE EMOTION!!"
)

package cli

func noSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}

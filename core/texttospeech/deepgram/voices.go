package deepgram

import "slices"

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceHelena    deepgramVoice = "aura-2-helena-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceAries     deepgramVoice = "aura-2-aries-en"
	VoiceAmalthea  deepgramVoice = "aura-2-amalthea-en"
	VoiceAsteria   deepgramVoice = "aura-asteria-en"
	VoiceOrion     deepgramVoice = "aura-orion-en"

	defaultVoice = VoiceThalia
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceThalia,
		VoiceAndromeda,
		VoiceHelena,
		VoiceApollo,
		VoiceArcas,
		VoiceAries,
		VoiceAmalthea,
		VoiceAsteria,
		VoiceOrion,
	}
}

// resolveVoice maps a character voice id onto a supported voice, unknown ids
// fall back to the default.
func resolveVoice(id string) (deepgramVoice, bool) {
	voice := deepgramVoice(id)
	if slices.Contains(GetAvailableVoices(), voice) {
		return voice, true
	}
	return defaultVoice, false
}

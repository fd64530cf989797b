package stt_test

import (
	"github.com/voicebridge/voicebridge/adapters/stt"
	"github.com/voicebridge/voicebridge/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}

package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType represents a strongly typed render option.
type OptionType string

// Render option constants.
const (
	OptionFastStart      OptionType = "faststart"
	OptionCopyTimestamps OptionType = "copyts"
	OptionNoAudio        OptionType = "no_audio"
	OptionShortest       OptionType = "shortest"
	OptionHWDecode       OptionType = "hwaccel_auto"
	OptionThreads1       OptionType = "threads_1"
)

// Option describes a render flag.
type Option struct {
	Key           OptionType   `json:"key"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Args          string       `json:"args"`
	BeforeInput   bool         `json:"before_input"`
	ConflictsWith []OptionType `json:"conflicts_with,omitempty"`
}

// AllOptions lists every supported render flag.
var AllOptions = []Option{
	{
		Key:         OptionFastStart,
		Name:        "Fast Start",
		Description: "Move the MP4 index to the front for progressive playback",
		Args:        "-movflags +faststart",
	},
	{
		Key:         OptionCopyTimestamps,
		Name:        "Copy Timestamps",
		Description: "Keep source timestamps so subtitles line up with trimmed inputs",
		Args:        "-copyts",
		BeforeInput: true,
	},
	{
		Key:           OptionNoAudio,
		Name:          "Drop Audio",
		Description:   "Write video only",
		Args:          "-an",
		ConflictsWith: []OptionType{OptionShortest},
	},
	{
		Key:         OptionShortest,
		Name:        "Shortest Stream",
		Description: "Stop when the shortest stream ends",
		Args:        "-shortest",
	},
	{
		Key:         OptionHWDecode,
		Name:        "Hardware Decode",
		Description: "Let ffmpeg pick a hardware decoder for the input",
		Args:        "-hwaccel auto",
		BeforeInput: true,
	},
	{
		Key:         OptionThreads1,
		Name:        "Single Thread",
		Description: "Limit the encoder to one thread",
		Args:        "-threads 1",
	},
}

// GetOptionByKey returns the option with key, or nil.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// ValidateOptions rejects unknown and conflicting options.
func ValidateOptions(selected []OptionType) error {
	set := make(map[OptionType]bool, len(selected))
	for _, key := range selected {
		if GetOptionByKey(key) == nil {
			return fmt.Errorf("unknown option %q", key)
		}
		set[key] = true
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		for _, conflict := range option.ConflictsWith {
			if set[conflict] {
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, GetOptionByKey(conflict).Name)
			}
		}
	}
	return nil
}

// applyOptions writes the args of the selected options that belong on the
// given side of -i.
func applyOptions(selected []OptionType, beforeInput bool, cmd *strings.Builder) {
	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil || option.BeforeInput != beforeInput {
			continue
		}
		cmd.WriteString(" " + option.Args)
	}
}

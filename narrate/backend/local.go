package backend

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// speechFlavor identifies the command-line convention of the speech
// binary.
type speechFlavor int

const (
	flavorEspeak speechFlavor = iota
	flavorSay
	flavorSAPI
)

// Local speaks through the platform speech binary: espeak-ng on Linux,
// say on macOS, the SAPI bridge through powershell on Windows. One
// utterance runs at a time; pause and resume suspend the underlying
// process.
type Local struct {
	cfg    narrate.LocalConfig
	logger *log.Logger

	voicesOnce sync.Once
	voiceList  []narrate.Voice

	mu     sync.Mutex
	cmd    *exec.Cmd
	done   func(error)
	paused bool
}

// NewLocal creates a platform speech backend from the given
// configuration.
func NewLocal(cfg narrate.LocalConfig, logger *log.Logger) *Local {
	if logger == nil {
		logger = log.Default()
	}
	return &Local{cfg: cfg, logger: logger}
}

// Name returns the speech binary name.
func (l *Local) Name() string {
	return filepath.Base(l.cfg.Binary)
}

// Available reports whether the speech binary can be found.
func (l *Local) Available() bool {
	if l.cfg.Binary == "" {
		return false
	}
	_, err := exec.LookPath(l.cfg.Binary)
	return err == nil
}

// Speak starts speaking text. Any utterance still running is cancelled
// first. done fires exactly once when the utterance finishes on its
// own; a cancelled utterance reports nothing.
func (l *Local) Speak(ctx context.Context, text string, params narrate.SpeechParams, done func(error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	args, stdin := l.buildArgs(text, params)
	cmd := exec.CommandContext(ctx, l.cfg.Binary, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", narrate.ErrBackendUnavailable, l.Name(), err)
	}

	l.logger.Debug("speaking chunk",
		"binary", l.Name(),
		"chars", len(text))

	l.cmd = cmd
	l.done = done
	l.paused = false

	go l.wait(cmd)
	return nil
}

// wait reaps the utterance process and reports its completion, unless
// the utterance was superseded in the meantime.
func (l *Local) wait(cmd *exec.Cmd) {
	err := cmd.Wait()

	l.mu.Lock()
	if l.cmd != cmd {
		l.mu.Unlock()
		return
	}
	done := l.done
	l.cmd = nil
	l.done = nil
	l.paused = false
	l.mu.Unlock()

	if done == nil {
		return
	}
	if err != nil {
		done(fmt.Errorf("%w: %s: %v", narrate.ErrSynthesisFailed, l.Name(), err))
		return
	}
	done(nil)
}

// Pause suspends the speaking process. No-op when nothing is speaking.
func (l *Local) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd == nil || l.cmd.Process == nil || l.paused {
		return nil
	}
	if err := suspendProcess(l.cmd); err != nil {
		return fmt.Errorf("pause %s: %w", l.Name(), err)
	}
	l.paused = true
	return nil
}

// Resume continues a suspended process. No-op when nothing is paused.
func (l *Local) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd == nil || l.cmd.Process == nil || !l.paused {
		return nil
	}
	if err := resumeProcess(l.cmd); err != nil {
		return fmt.Errorf("resume %s: %w", l.Name(), err)
	}
	l.paused = false
	return nil
}

// Cancel stops the current utterance. Safe to call when idle.
func (l *Local) Cancel() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	return nil
}

func (l *Local) stopLocked() {
	cmd := l.cmd
	l.cmd = nil
	l.done = nil
	l.paused = false
	if cmd == nil || cmd.Process == nil {
		return
	}
	terminateProcess(cmd)
}

// Voices lists the voices the platform engine offers. The listing is
// queried once and cached.
func (l *Local) Voices() []narrate.Voice {
	l.voicesOnce.Do(func() {
		l.voiceList = l.listVoices()
	})
	out := make([]narrate.Voice, len(l.voiceList))
	copy(out, l.voiceList)
	return out
}

func (l *Local) listVoices() []narrate.Voice {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	switch l.flavor() {
	case flavorSay:
		out, err := exec.CommandContext(ctx, l.cfg.Binary, "-v", "?").Output()
		if err != nil {
			l.logger.Warn("listing voices failed", "binary", l.Name(), "err", err)
			return nil
		}
		return parseSayVoices(string(out))

	case flavorEspeak:
		out, err := exec.CommandContext(ctx, l.cfg.Binary, "--voices").Output()
		if err != nil {
			l.logger.Warn("listing voices failed", "binary", l.Name(), "err", err)
			return nil
		}
		return parseEspeakVoices(string(out))

	default:
		// SAPI voices are installation-specific and there is no cheap
		// way to ask for them.
		return nil
	}
}

func (l *Local) flavor() speechFlavor {
	switch filepath.Base(l.cfg.Binary) {
	case "say":
		return flavorSay
	case "powershell", "pwsh":
		return flavorSAPI
	default:
		return flavorEspeak
	}
}

// buildArgs renders per-utterance parameters into the argument
// convention of the speech binary. The second return value is text to
// feed through stdin instead of the command line.
func (l *Local) buildArgs(text string, params narrate.SpeechParams) ([]string, string) {
	switch l.flavor() {
	case flavorSay:
		args := []string{"-r", strconv.Itoa(l.wordsPerMinute(params.Rate))}
		if params.Voice != "" {
			args = append(args, "-v", params.Voice)
		}
		return append(args, text), ""

	case flavorSAPI:
		return []string{"-NoProfile", "-Command", sapiScript(params)}, text

	default:
		args := []string{"-s", strconv.Itoa(l.wordsPerMinute(params.Rate))}
		if params.Pitch > 0 {
			args = append(args, "-p", strconv.Itoa(espeakPitch(params.Pitch)))
		}
		if params.Volume > 0 {
			args = append(args, "-a", strconv.Itoa(espeakAmplitude(params.Volume)))
		}
		if params.Voice != "" {
			args = append(args, "-v", params.Voice)
		}
		return append(args, text), ""
	}
}

// wordsPerMinute scales the configured base speed by the playback
// rate.
func (l *Local) wordsPerMinute(rate float64) int {
	if rate == 0 {
		rate = 1.0
	}
	wpm := int(float64(l.cfg.WordsPerMinute) * rate)
	if wpm < 80 {
		wpm = 80
	}
	if wpm > 450 {
		wpm = 450
	}
	return wpm
}

// espeakPitch maps the 0..2 pitch to espeak's 0..99 scale, 50 being
// the default.
func espeakPitch(pitch float64) int {
	p := int(pitch * 50)
	if p < 0 {
		p = 0
	}
	if p > 99 {
		p = 99
	}
	return p
}

// espeakAmplitude maps the 0..1 volume to espeak's 0..200 scale, 100
// being the default.
func espeakAmplitude(volume float64) int {
	a := int(volume * 100)
	if a < 0 {
		a = 0
	}
	if a > 200 {
		a = 200
	}
	return a
}

// sapiScript builds the powershell command speaking stdin through the
// Windows speech API.
func sapiScript(params narrate.SpeechParams) string {
	// SAPI rates run -10..10 with 0 the default.
	rate := int((params.Rate - 1.0) * 10)
	if rate < -10 {
		rate = -10
	}
	if rate > 10 {
		rate = 10
	}

	volume := int(params.Volume * 100)
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	fmt.Fprintf(&b, "$s.Rate = %d; $s.Volume = %d; ", rate, volume)
	if params.Voice != "" {
		fmt.Fprintf(&b, "$s.SelectVoice('%s'); ", strings.ReplaceAll(params.Voice, "'", "''"))
	}
	b.WriteString("$s.Speak([Console]::In.ReadToEnd());")
	return b.String()
}

// parseEspeakVoices parses `espeak-ng --voices` output.
func parseEspeakVoices(out string) []narrate.Voice {
	var voices []narrate.Voice
	for i, line := range strings.Split(out, "\n") {
		if i == 0 {
			// Column header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		lang := fields[1]
		voices = append(voices, narrate.Voice{
			ID:       lang,
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: lang,
			Gender:   espeakGender(fields[2]),
		})
	}
	return voices
}

func espeakGender(ageGender string) string {
	if i := strings.LastIndex(ageGender, "/"); i >= 0 {
		ageGender = ageGender[i+1:]
	}
	switch ageGender {
	case "M":
		return "male"
	case "F":
		return "female"
	default:
		return ""
	}
}

// parseSayVoices parses `say -v ?` output. Voice names may contain
// spaces; the locale is the last field before the sample sentence.
func parseSayVoices(out string) []narrate.Voice {
	var voices []narrate.Voice
	for _, line := range strings.Split(out, "\n") {
		entry := line
		if i := strings.Index(entry, "#"); i >= 0 {
			entry = entry[:i]
		}
		fields := strings.Fields(entry)
		if len(fields) < 2 {
			continue
		}

		locale := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, narrate.Voice{
			ID:       name,
			Name:     name,
			Language: strings.ReplaceAll(locale, "_", "-"),
		})
	}
	return voices
}

// MatchVoice returns the voice best matching a BCP 47 language tag.
func MatchVoice(voices []narrate.Voice, lang string) (narrate.Voice, error) {
	want, err := language.Parse(lang)
	if err != nil {
		return narrate.Voice{}, fmt.Errorf("language %q: %w", lang, narrate.ErrUnsupportedVoice)
	}

	tags := make([]language.Tag, 0, len(voices))
	candidates := make([]narrate.Voice, 0, len(voices))
	for _, v := range voices {
		tag, err := language.Parse(v.Language)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		candidates = append(candidates, v)
	}
	if len(tags) == 0 {
		return narrate.Voice{}, fmt.Errorf("no voices with a usable language: %w", narrate.ErrUnsupportedVoice)
	}

	matcher := language.NewMatcher(tags)
	_, idx, conf := matcher.Match(want)
	if conf == language.No {
		return narrate.Voice{}, fmt.Errorf("no voice for %q: %w", lang, narrate.ErrUnsupportedVoice)
	}
	return candidates[idx], nil
}

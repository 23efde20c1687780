package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yamunaarun/narrato-audio-book/internal/cache"
	"github.com/yamunaarun/narrato-audio-book/internal/connectivity"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
	"github.com/yamunaarun/narrato-audio-book/narrate"
	"github.com/yamunaarun/narrato-audio-book/narrate/audio"
	"github.com/yamunaarun/narrato-audio-book/narrate/backend"
	"github.com/yamunaarun/narrato-audio-book/narrate/chunk"
)

// player is one narration session over a single document.
type player struct {
	app    *app
	doc    *store.Document
	chunks []string
	engine *narrate.Engine
	out    *termenv.Output

	events chan narrate.Event

	// resume is the chunk playback starts from when idle.
	resume int
}

// runPlayer narrates one document, interactively when stdin is a
// terminal.
func runPlayer(cmd *cobra.Command, a *app, doc *store.Document) error {
	cfg, err := buildNarrateConfig(cmd)
	if err != nil {
		return err
	}

	if strings.TrimSpace(doc.NarrationText) == "" {
		return fmt.Errorf("%s has nothing to narrate", doc.Title)
	}

	paragraphs := doc.ParagraphList()
	if len(paragraphs) == 0 {
		paragraphs = strings.Split(doc.NarrationText, "\n\n")
	}
	chunks := chunk.Sequence(doc.NarrationText, paragraphs, cfg.MaxChunkLen)
	if len(chunks) == 0 {
		return fmt.Errorf("%s has nothing to narrate", doc.Title)
	}

	mode := backendMode
	if mode == "" {
		mode = "auto"
	}

	speaker := backend.NewLocal(cfg.Local, a.logger)

	if mode == "remote" && cfg.Remote.APIKey == "" {
		return errors.New("remote narration needs an API key: set NARRATO_REMOTE_API_KEY or remote.api_key")
	}
	if mode == "local" && !speaker.Available() {
		return fmt.Errorf("speech binary %q not found: configure local.binary", cfg.Local.Binary)
	}

	useLocal := mode != "remote" && speaker.Available()
	useRemote := mode != "local" && cfg.Remote.APIKey != ""

	// pick a voice for the document's language when none is configured
	if useLocal && cfg.Voice == "" && cfg.Local.Voice == "" && doc.LanguageCode != "" {
		if v, err := backend.MatchVoice(speaker.Voices(), doc.LanguageCode); err == nil {
			cfg.Local.Voice = v.ID
		}
	}

	opts := narrate.Options{
		Config:     cfg,
		Chunks:     chunks,
		Store:      a.progress,
		UserID:     a.user,
		DocumentID: doc.ID,
		Logger:     a.logger,
	}
	if useLocal {
		opts.Local = speaker
	}
	if useRemote {
		opts.Remote = backend.NewRemote(cfg.Remote, a.logger)
		opts.Device = audio.NewPlayer(a.logger)

		cacheCfg, err := buildCacheConfig(a.dataDir)
		if err != nil {
			return err
		}
		audioCache, err := cache.NewAudio(cacheCfg, a.logger)
		if err != nil {
			a.logger.Warn("audio cache unavailable", "err", err)
		} else {
			opts.Cache = audioCache
			defer audioCache.Close() //nolint:errcheck
		}

		conCfg, err := buildConnectivityConfig()
		if err != nil {
			return err
		}
		monitor := connectivity.New(conCfg, a.logger)
		monitor.Start()
		defer monitor.Close()
		opts.Online = monitor.Online
	}

	if opts.Remote == nil && opts.Local == nil {
		return fmt.Errorf("no voice backend available: install %s or configure an API key", cfg.Local.Binary)
	}

	events := make(chan narrate.Event, 64)
	opts.OnEvent = func(ev narrate.Event) {
		// called on the dispatch goroutine; drop rather than block
		select {
		case events <- ev:
		default:
		}
	}

	eng, err := narrate.New(opts)
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck

	ctx := cmd.Context()

	resume := 0
	if !noResume {
		cp, err := eng.Restore(ctx)
		if err != nil {
			a.logger.Warn("could not load saved position", "err", err)
		} else if cp != nil {
			if cp.ChunkIndex > 0 && cp.ChunkIndex < len(chunks) {
				resume = cp.ChunkIndex
			}
			if cp.Rate > 0 && !cmd.Flags().Changed("rate") {
				_ = eng.SetRate(cp.Rate)
			}
		}
	}

	p := &player{
		app:    a,
		doc:    doc,
		chunks: chunks,
		engine: eng,
		events: events,
		resume: resume,
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return p.runHeadless()
	}

	p.out = termenv.NewOutput(os.Stdout)
	p.out.HideCursor()
	defer p.out.ShowCursor()

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("unable to read keys: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState) //nolint:errcheck

	fmt.Printf("%s %s\r\n", titleStyle.Render(doc.Title), subtle(fmt.Sprintf("%d chunks", len(chunks))))
	if resume > 0 {
		fmt.Printf("%s\r\n", subtle(fmt.Sprintf("Picking up at chunk %d of %d. Press a to start over.", resume+1, len(chunks))))
	}
	fmt.Printf("%s\r\n\r\n", subtle("space play/pause · n/p chunk · r repeat · +/- rate · b bookmark · y yank · s stop · q quit"))

	if cfg.AutoPlay {
		p.start(resume)
	} else {
		p.status(subtle("press space to play"))
	}

	return p.loop()
}

// runHeadless plays everything from the resume point and blocks until
// the session ends. Used when stdin is not a terminal.
func (p *player) runHeadless() error {
	p.start(p.resume)
	for ev := range p.events {
		switch v := ev.(type) {
		case narrate.ChunkStartedEvent:
			fmt.Printf("[%d/%d] %s\n", v.Index+1, v.Total, v.Text)
		case narrate.FallbackEvent:
			fmt.Println(warningStyle.Render(fmt.Sprintf("%s unreachable, continuing with %s", v.From, v.To)))
		case narrate.EndedEvent:
			return nil
		case narrate.ErrorEvent:
			if !v.Recoverable {
				return v.Err
			}
		}
	}
	return nil
}

// loop owns the terminal: one goroutine reads keys, this one renders
// events and runs the controls.
func (p *player) loop() error {
	keyCh := make(chan byte, 8)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			if n > 0 {
				keyCh <- buf[0]
			}
		}
	}()

	for {
		select {
		case ev := <-p.events:
			p.handleEvent(ev)
		case b := <-keyCh:
			if quit := p.handleKey(b); quit {
				p.line(subtle("bye"))
				return nil
			}
		case err := <-readErr:
			return err
		}
	}
}

func (p *player) handleKey(b byte) bool {
	switch b {
	case ' ':
		p.togglePlayback()
	case 'a':
		p.start(0)
	case 'n':
		p.jump(1)
	case 'p':
		p.jump(-1)
	case 'r':
		if p.engine.Snapshot().Chunk < 0 {
			p.status(subtle("nothing to repeat"))
			return false
		}
		if err := p.engine.Repeat(); err != nil {
			p.printError(err)
		}
	case '+', '=':
		p.changeRate(0.25)
	case '-', '_':
		p.changeRate(-0.25)
	case 'b':
		p.addBookmark()
	case 'y':
		p.yankChunk()
	case 's':
		if snap := p.engine.Snapshot(); snap.Chunk >= 0 {
			p.resume = snap.Chunk
		}
		if err := p.engine.Stop(); err != nil {
			p.printError(err)
		}
	case 'q', 3, 4: // q, ctrl-c, ctrl-d
		return true
	}
	return false
}

func (p *player) togglePlayback() {
	switch p.engine.Snapshot().CurrentState {
	case narrate.StatePlaying, narrate.StateLoading:
		if err := p.engine.Pause(); err != nil {
			p.printError(err)
		}
	case narrate.StatePaused:
		if err := p.engine.Resume(); err != nil {
			p.printError(err)
		}
	case narrate.StateEnded:
		p.start(0)
	default:
		p.start(p.resume)
	}
}

// start queues every chunk from the given index onward.
func (p *player) start(from int) {
	if from < 0 || from >= len(p.chunks) {
		from = 0
	}
	p.resume = from

	sel := make([]int, 0, len(p.chunks)-from)
	for i := from; i < len(p.chunks); i++ {
		sel = append(sel, i)
	}
	if err := p.engine.PlayAll(sel...); err != nil {
		p.printError(err)
	}
}

func (p *player) jump(delta int) {
	snap := p.engine.Snapshot()
	target := snap.Chunk + delta
	if snap.Chunk < 0 {
		target = p.resume
	}
	if target < 0 || target >= len(p.chunks) {
		return
	}
	p.start(target)
}

func (p *player) changeRate(delta float64) {
	rate := p.engine.Snapshot().Rate + delta
	if err := p.engine.SetRate(rate); err != nil {
		p.printError(err)
	}
}

func (p *player) addBookmark() {
	snap := p.engine.Snapshot()
	if snap.Chunk < 0 {
		p.status(subtle("nothing playing to bookmark"))
		return
	}

	bm := store.Bookmark{
		UserID:     p.app.user,
		DocumentID: p.doc.ID,
		Label:      truncate.StringWithTail(p.chunks[snap.Chunk], 60, "…"),
		ChunkIndex: snap.Chunk,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.app.bookmarks.Create(ctx, &bm); err != nil {
		p.printError(err)
		return
	}
	p.status(fmt.Sprintf("%s chunk %d", subtle("bookmarked"), snap.Chunk+1))
}

func (p *player) yankChunk() {
	snap := p.engine.Snapshot()
	if snap.Chunk < 0 {
		return
	}
	if err := clipboard.WriteAll(p.chunks[snap.Chunk]); err != nil {
		p.printError(fmt.Errorf("unable to copy to clipboard: %w", err))
		return
	}
	p.status(subtle("copied chunk text"))
}

func (p *player) handleEvent(ev narrate.Event) {
	switch v := ev.(type) {
	case narrate.ChunkStartedEvent:
		p.renderChunk(v.Index, v.Total, v.Text, v.Backend, "▶")
	case narrate.StateChangedEvent:
		switch {
		case v.To == narrate.StatePaused:
			p.renderCurrent("❚❚")
		case v.From == narrate.StatePaused && v.To == narrate.StatePlaying:
			p.renderCurrent("▶")
		}
	case narrate.FallbackEvent:
		p.line(warningStyle.Render(fmt.Sprintf("%s unreachable, continuing with %s", v.From, v.To)))
	case narrate.RateChangedEvent:
		p.status(subtle(fmt.Sprintf("rate %.2fx", v.Rate)))
	case narrate.StoppedEvent:
		if v.Reason == "user" {
			p.status(subtle("stopped. space resumes"))
		}
	case narrate.EndedEvent:
		p.resume = 0
		p.line(fmt.Sprintf("%s %s", keyword("✓"), subtle("finished. space replays, q quits")))
	case narrate.ErrorEvent:
		if v.Recoverable {
			p.line(warningStyle.Render(fmt.Sprintf("%s: %v", v.Component, v.Err)))
		} else {
			p.line(errorStyle.Render(fmt.Sprintf("narration failed: %v", v.Err)))
		}
	}
}

// renderCurrent redraws the status line from the engine snapshot.
func (p *player) renderCurrent(glyph string) {
	snap := p.engine.Snapshot()
	if snap.Chunk < 0 || snap.Chunk >= len(p.chunks) {
		return
	}
	p.renderChunk(snap.Chunk, snap.TotalChunks, p.chunks[snap.Chunk], snap.Backend, glyph)
}

func (p *player) renderChunk(index, total int, text, backendName, glyph string) {
	head := fmt.Sprintf("%s %d/%d %.2fx %s  ", glyph, index+1, total, p.engine.Snapshot().Rate, backendName)
	room := terminalWidth() - runewidth.StringWidth(head) - 1
	if room < 10 {
		room = 10
	}
	oneline := strings.Join(strings.Fields(text), " ")
	p.status(subtle(head) + truncate.StringWithTail(oneline, uint(room), "…")) //nolint:gosec
}

// status rewrites the transient status line in place.
func (p *player) status(s string) {
	if p.out == nil {
		fmt.Println(s)
		return
	}
	p.out.ClearLine()
	fmt.Fprintf(p.out, "\r%s", s)
}

// line commits a permanent line above the status.
func (p *player) line(s string) {
	if p.out == nil {
		fmt.Println(s)
		return
	}
	p.out.ClearLine()
	fmt.Fprintf(p.out, "\r%s\r\n", s)
}

func (p *player) printError(err error) {
	p.line(errorStyle.Render(err.Error()))
}

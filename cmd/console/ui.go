package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/flimo-world/internal/handlers"
	"github.com/jwebster45206/flimo-world/internal/services/events"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
	"github.com/muesli/reflow/wordwrap"
)

const (
	PlaceHolderText = "Say something to the selected NPC, or /help..."

	feedLimit       = behavior.DefaultFeedCap
	refreshInterval = 2 * time.Second
	listWidth       = 32
)

// ConsoleUI is the BubbleTea model that runs the viewer.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config *ConsoleConfig
	client *http.Client

	sessionID string
	npcs      []behavior.NPCStatus
	selected  int
	feed      []behavior.Event // newest first

	// Transcripts per NPC id. An entry exists once the chat was opened.
	chats map[string][]npcapi.ChatMessage

	chatViewport viewport.Model
	feedViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string
	loading      bool
	streamUp     bool

	showQuitModal bool
	progressTick  int
}

type npcsLoadedMsg struct {
	resp *handlers.NPCListResponse
	err  error
}

type feedLoadedMsg struct {
	events []behavior.Event
	err    error
}

type streamEventMsg struct {
	event events.Event
}

type streamDownMsg struct {
	err error
}

type chatOpenedMsg struct {
	npcID string
	resp  *npcapi.OpenChatResponse
	err   error
}

type chatResponseMsg struct {
	npcID    string
	response *npcapi.ChatResponse
	err      error
}

type moveQueuedMsg struct {
	npcID    string
	location string
	err      error
}

type refreshTickMsg struct{}

type progressTickMsg struct{}

var (
	listPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingLeft(2).
			PaddingRight(1)

	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(2).
			PaddingRight(0)

	feedPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	npcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	movingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	feedVp := viewport.New(30, 20)
	feedVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:       cfg,
		client:       client,
		chats:        make(map[string][]npcapi.ChatMessage),
		textarea:     ta,
		chatViewport: chatVp,
		feedViewport: feedVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.loadNPCs(), m.loadFeed(), refreshTick(), textarea.Blink)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		fvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.feedViewport, fvCmd = m.feedViewport.Update(msg)
		return m, tea.Batch(vpCmd, fvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.writeChatContent()
		m.writeFeed()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyTab:
			return m.selectNPC(m.selected + 1)
		case tea.KeyShiftTab:
			return m.selectNPC(m.selected - 1)
		case tea.KeyCtrlY:
			m.copyBehavior()
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.say(input)
		}

	case npcsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.err = nil
		m.sessionID = msg.resp.SessionID
		m.npcs = msg.resp.NPCs
		if m.selected >= len(m.npcs) {
			m.selected = 0
		}
		m.writeChatContent()

	case feedLoadedMsg:
		if msg.err == nil {
			m.feed = msg.events
			m.writeFeed()
		}

	case streamEventMsg:
		return m, m.applyStreamEvent(msg.event)

	case streamDownMsg:
		m.streamUp = false
		if msg.err != nil {
			m.notice = "Event stream lost, reconnecting..."
		}

	case chatOpenedMsg:
		if msg.err != nil {
			m.err = msg.err
			delete(m.chats, msg.npcID)
		} else {
			history := msg.resp.History
			if msg.resp.Greeting != "" {
				history = append(history, npcapi.ChatMessage{Role: npcapi.ChatRoleNPC, Content: msg.resp.Greeting})
			}
			m.chats[msg.npcID] = history
		}
		m.writeChatContent()

	case chatResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.chats[msg.npcID] = append(m.chats[msg.npcID], npcapi.ChatMessage{
				Role:    npcapi.ChatRoleNPC,
				Content: msg.response.Reply,
			})
		}
		m.writeChatContent()

	case moveQueuedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.notice = fmt.Sprintf("Asked %s to go to %s", m.displayName(msg.npcID), msg.location)
		}

	case refreshTickMsg:
		return m, tea.Batch(m.loadNPCs(), refreshTick())

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.feedViewport, fvCmd = m.feedViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, fvCmd)
}

// applyStreamEvent folds one live event into the model.
func (m *ConsoleUI) applyStreamEvent(e events.Event) tea.Cmd {
	switch e.Type {
	case "connected":
		m.streamUp = true
		m.notice = ""
	case events.EventTypeSessionStarted:
		return m.loadNPCs()
	case events.EventTypeNPCBehavior, events.EventTypeNPCMoveStart, events.EventTypeNPCMoveArrive:
		var ev behavior.Event
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			return nil
		}
		m.feed = append([]behavior.Event{ev}, m.feed...)
		if len(m.feed) > feedLimit {
			m.feed = m.feed[:feedLimit]
		}
		m.writeFeed()
		m.applyFeedEvent(ev)
	case events.EventTypeNPCPosition:
		var pos world.Position
		if err := json.Unmarshal(e.Data, &pos); err != nil {
			return nil
		}
		for i := range m.npcs {
			if m.npcs[i].NPC.ID == pos.NPCID {
				m.npcs[i].Position = &pos
			}
		}
	}
	return nil
}

// applyFeedEvent updates the NPC list ahead of the next poll.
func (m *ConsoleUI) applyFeedEvent(ev behavior.Event) {
	for i := range m.npcs {
		st := &m.npcs[i]
		if st.NPC.ID != ev.NPCID {
			continue
		}
		switch ev.Kind {
		case behavior.EventBehavior:
			st.Behavior = &npcapi.Behavior{Action: ev.Action, TargetLocation: ev.TargetLocation, StartTime: ev.StartTime}
		case behavior.EventMoveStart:
			st.State = behavior.StateMoving
		case behavior.EventMoveArrive:
			st.State = behavior.StateIdle
			st.Location = ev.TargetLocation
		}
	}
}

func (m ConsoleUI) selectNPC(i int) (tea.Model, tea.Cmd) {
	if len(m.npcs) == 0 {
		return m, nil
	}
	m.selected = (i + len(m.npcs)) % len(m.npcs)
	m.err = nil
	m.writeChatContent()

	npcID := m.npcs[m.selected].NPC.ID
	if _, open := m.chats[npcID]; open || m.sessionID == "" {
		return m, nil
	}
	m.chats[npcID] = nil
	return m, m.openChat(npcID)
}

func (m ConsoleUI) current() (behavior.NPCStatus, bool) {
	if m.selected < 0 || m.selected >= len(m.npcs) {
		return behavior.NPCStatus{}, false
	}
	return m.npcs[m.selected], true
}

func (m ConsoleUI) displayName(npcID string) string {
	for _, st := range m.npcs {
		if st.NPC.ID == npcID {
			return st.NPC.DisplayName
		}
	}
	return npcID
}

func (m *ConsoleUI) copyBehavior() {
	st, ok := m.current()
	if !ok || st.Behavior == nil {
		m.notice = "Nothing to copy"
		return
	}
	if err := clipboard.WriteAll(st.Behavior.Action); err != nil {
		m.err = fmt.Errorf("failed to copy: %w", err)
		return
	}
	m.notice = "Copied " + st.NPC.DisplayName + "'s plan"
}

func (m ConsoleUI) say(input string) (tea.Model, tea.Cmd) {
	st, ok := m.current()
	if !ok {
		return m, nil
	}
	npcID := st.NPC.ID
	m.chats[npcID] = append(m.chats[npcID], npcapi.ChatMessage{Role: npcapi.ChatRoleUser, Content: input})
	m.loading = true
	m.progressTick = 0
	m.writeChatContent()
	return m, tea.Batch(m.sendChatMessage(npcID, input), progressTick())
}

// parseCommand splits "/move Old Saloon" into "move" and "Old Saloon".
func parseCommand(input string) (string, string) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(input), "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	name, arg := parseCommand(input)
	st, ok := m.current()

	switch name {
	case "help":
		m.notice = "Tab/Shift+Tab: pick NPC • Enter: talk • /move <place> • /close • Ctrl+Y: copy plan • Ctrl+C: quit"
	case "move":
		if !ok || arg == "" {
			m.notice = "Usage: /move <location>"
			return m, nil
		}
		return m, m.requestMove(st.NPC.ID, arg)
	case "close":
		if !ok {
			return m, nil
		}
		delete(m.chats, st.NPC.ID)
		m.writeChatContent()
		return m, m.closeChat(st.NPC.ID)
	case "refresh":
		return m, tea.Batch(m.loadNPCs(), m.loadFeed())
	default:
		m.notice = "Unknown command /" + name
	}
	return m, nil
}

func (m *ConsoleUI) layout() {
	feedWidth := m.width / 4
	chatWidth := m.width - listWidth - feedWidth - 4

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 8
	m.feedViewport.Width = feedWidth - 3
	m.feedViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m *ConsoleUI) writeChatContent() {
	width := max(m.chatViewport.Width-4, 10)
	var content strings.Builder

	st, ok := m.current()
	if !ok {
		content.WriteString(titleStyle.Render("FLIMO WORLD") + "\n\n")
		content.WriteString("Waiting for NPCs...\n")
		m.chatViewport.SetContent(content.String())
		return
	}

	content.WriteString(titleStyle.Render(strings.ToUpper(st.NPC.DisplayName)) + "\n")
	if st.NPC.Profile.Role != "" {
		content.WriteString(promptStyle.Render(st.NPC.Profile.Role) + "\n")
	}
	content.WriteString("\n" + separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, msg := range m.chats[st.NPC.ID] {
		switch msg.Role {
		case npcapi.ChatRoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Content, width-5) + "\n\n")
		default:
			prefix := st.NPC.DisplayName + ": "
			content.WriteString(speakerStyle.Render(prefix) + npcStyle.Render(wordwrap.String(msg.Content, width-len(prefix))) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeFeed() {
	width := max(m.feedViewport.Width, 10)
	var content strings.Builder
	content.WriteString(titleStyle.Render("TOWN FEED") + "\n\n")
	if len(m.feed) == 0 {
		content.WriteString(promptStyle.Render("Nothing has happened yet.") + "\n")
	}
	for _, ev := range m.feed {
		content.WriteString(wordwrap.String(formatEvent(ev), width) + "\n\n")
	}
	m.feedViewport.SetContent(content.String())
}

// formatEvent renders a feed entry as one sentence.
func formatEvent(ev behavior.Event) string {
	var line string
	switch ev.Kind {
	case behavior.EventMoveStart:
		line = fmt.Sprintf("%s sets off for %s.", ev.NPCName, ev.TargetLocation)
	case behavior.EventMoveArrive:
		line = fmt.Sprintf("%s arrives at %s.", ev.NPCName, ev.TargetLocation)
	default:
		line = fmt.Sprintf("%s decides to %s.", ev.NPCName, strings.TrimSuffix(ev.Action, "."))
	}
	if ev.StartTime != "" {
		line = "[" + ev.StartTime + "] " + line
	}
	return line
}

func (m ConsoleUI) renderNPCList() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("NPCS") + "\n\n")
	if m.sessionID == "" {
		content.WriteString(movingStyle.Render("session starting...") + "\n\n")
	}

	width := listWidth - 4
	for i, st := range m.npcs {
		name := st.NPC.DisplayName
		if i == m.selected {
			content.WriteString(selectedStyle.Render("▶ "+name) + "\n")
		} else {
			content.WriteString(speakerStyle.Render("  "+name) + "\n")
		}

		where := st.Location
		if where == "" {
			where = "somewhere"
		}
		if st.State == behavior.StateMoving {
			content.WriteString(movingStyle.Render("  walking, left "+where) + "\n")
		} else {
			content.WriteString(promptStyle.Render("  at "+where) + "\n")
		}
		if st.Behavior != nil && st.Behavior.Action != "" {
			content.WriteString(wordwrap.String("  "+st.Behavior.Action, width) + "\n")
		}
		content.WriteString("\n")
	}
	return content.String()
}

func (m ConsoleUI) renderStatus() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("Error: " + m.err.Error())
	case m.notice != "":
		return promptStyle.Render(m.notice)
	case !m.streamUp:
		return movingStyle.Render("Connecting to event stream...")
	default:
		return promptStyle.Render("Tab: next NPC • /help")
	}
}

func (m ConsoleUI) loadNPCs() tea.Cmd {
	return func() tea.Msg {
		resp, err := listNPCs(context.Background(), m.client, m.config.APIBaseURL)
		return npcsLoadedMsg{resp, err}
	}
}

func (m ConsoleUI) loadFeed() tea.Cmd {
	return func() tea.Msg {
		resp, err := getFeed(context.Background(), m.client, m.config.APIBaseURL, feedLimit)
		if err != nil {
			return feedLoadedMsg{err: err}
		}
		return feedLoadedMsg{events: resp.Events}
	}
}

func (m ConsoleUI) openChat(npcID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := openChat(context.Background(), m.client, m.config.APIBaseURL, npcID)
		return chatOpenedMsg{npcID, resp, err}
	}
}

func (m ConsoleUI) closeChat(npcID string) tea.Cmd {
	return func() tea.Msg {
		if err := closeChat(context.Background(), m.client, m.config.APIBaseURL, npcID); err != nil {
			return chatResponseMsg{npcID: npcID, err: err}
		}
		return nil
	}
}

func (m ConsoleUI) sendChatMessage(npcID, message string) tea.Cmd {
	return func() tea.Msg {
		resp, err := sendChat(context.Background(), m.client, m.config.APIBaseURL, npcID, message)
		return chatResponseMsg{npcID, resp, err}
	}
}

func (m ConsoleUI) requestMove(npcID, location string) tea.Cmd {
	return func() tea.Msg {
		_, err := requestMove(context.Background(), m.client, m.config.APIBaseURL, npcID, location)
		return moveQueuedMsg{npcID, location, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Viewer?"))
	content.WriteString("\n\n")
	content.WriteString("The town keeps going without you.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	feedWidth := m.width / 4
	chatWidth := m.width - listWidth - feedWidth - 4

	listPanel := listPanelStyle.Width(listWidth).Height(m.height - 2).Render(m.renderNPCList())

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			m.renderStatus(),
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	feedPanel := feedPanelStyle.Width(feedWidth).Height(m.height - 2).Render(
		m.feedViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, listPanel, chatPanel, feedPanel)
}

// renderProgressBar draws the waiting animation under the transcript.
func (m ConsoleUI) renderProgressBar() string {
	usable := min(max(m.chatViewport.Width-6, 10), 60)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

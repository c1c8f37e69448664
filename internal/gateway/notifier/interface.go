package notifier

// TextNotifier 推送一条纯文本（Markdown）消息。
type TextNotifier interface {
	SendText(text string) error
}

// Nop 丢弃所有消息，用于未启用通知时。
type Nop struct{}

func (Nop) SendText(string) error { return nil }

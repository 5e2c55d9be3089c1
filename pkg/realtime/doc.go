// Package realtime is a client for the OpenAI Realtime API that keeps the
// authoritative list of conversation items for one session.
//
// The Client owns a bidirectional event channel (a [Conn] obtained from a
// [Dialer]; [WebSocketDialer] is the production transport) and a
// [Conversation] store that folds server events into [Item] values.
// Consumers register a [Handler] and receive a closed set of [Event]
// variants:
//
//   - [ChannelOpened]: the channel connected
//   - [ChannelError]: the server reported an error or the channel dropped
//   - [ItemUpdated]: an item was created or changed; carries the change
//     descriptor, any delta, and a full snapshot of all items
//   - [Interrupted]: the server detected the user talking over the assistant
//   - [ToolInvoked]: a registered tool ran and its result was sent back
//   - [WireEvent]: every raw event in either direction, for logging
//
// # Quick start
//
//	c := realtime.NewClient(&realtime.WebSocketDialer{APIKey: key})
//	c.OnEvent(func(ev realtime.Event) {
//	    switch e := ev.(type) {
//	    case realtime.ItemUpdated:
//	        fmt.Println(e.Item.Formatted.Transcript)
//	    }
//	})
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	defer c.Disconnect()
//	c.SendUserMessageContent([]realtime.ContentPart{realtime.InputText("Hey there!")})
//
// Audio is PCM16 mono at 24 kHz in both directions.
package realtime

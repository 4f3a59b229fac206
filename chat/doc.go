// Package chat contains the transports the bot talks through.
//
//   - Client: connects to Twitch IRC as TWITCH_BOT_USERNAME, joins
//     TWITCH_CHANNELS and delivers every PRIVMSG to the bot. Replies and
//     live announcements go out with Say.
//   - Console: reads lines from stdin as messages in channel "console" and
//     prints replies to stdout, for running the bot locally without Twitch.
//
// Credentials: the IRC client requires a bot username and a user OAuth token
// with chat:read/chat:edit scopes. The Helix app token cannot be used for chat.
package chat

package config

// DefaultContent returns the built-in 8-ball answers and help lines.
func DefaultContent() Content {
	return Content{
		Answers: []string{
			"It is certain",
			"It is decidedly so",
			"Without a doubt",
			"Yes definitely",
			"You may rely on it",
			"As I see it, yes",
			"Most likely",
			"Outlook good",
			"Yes",
			"Signs point to yes",
			"Reply hazy try again",
			"Ask again later",
			"Better not tell you now",
			"Cannot predict now",
			"Concentrate and ask again",
			"Don't count on it",
			"My reply is no",
			"My sources say no",
			"Outlook not so good",
			"Very doubtful",
		},
		Help: []string{
			" >> Commands:",
			" >>> %8ball [question] - ask the magic 8-ball",
			" >>> %addstreamer [channel] / %removestreamer [channel] - track a twitch channel",
			" >>> %streamers - list tracked channels, %live - list channels that are live",
			" >>> %history [text] - search this chat's log, %frequency [text] - new matches since the last ask",
			" >>> %hscard [name] - look up a hearthstone card",
			" >>> %weather [city],[country] - current temperature",
			" >>> %message [text] - read or set the message of the day",
			" >>> %time, %trigger [text], %power [start|stop]",
			" >>> %code, %csgo, %kawkaw, %premade, %wubwub",
		},
	}
}

package filter

// Keyword tables for the first filtering stage. Matching is done on
// lowercased subject+body, so everything here is lowercase.

// nonEventKeywords reject a message outright regardless of score.
var nonEventKeywords = []string{
	"congratulations",
	"bus fare",
	"birthday",
}

// strongEventKeywords are phrases that almost only appear in event
// announcements.
var strongEventKeywords = []string{
	"rsvp",
	"invitation",
	"invites you",
	"webinar",
	"conference",
	"workshop",
	"seminar",
	"hackathon",
	"meetup",
	"symposium",
	"guest lecture",
	"register now",
}

// weakEventKeywords co-occur with events but also with plenty of other
// mail.
var weakEventKeywords = []string{
	"join us",
	"event",
	"session",
	"talk",
	"venue",
	"agenda",
	"schedule",
	"registration",
	"deadline",
}

var timeKeywords = []string{
	"today",
	"tomorrow",
	"this week",
	"next week",
	"this month",
	"next month",
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
	"am",
	"pm",
	"morning",
	"afternoon",
	"evening",
	"noon",
	"midnight",
}

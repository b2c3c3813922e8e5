/*
Package protocol defines the websocket wire format spoken between classroom
clients and the session coordinator.

Every frame is a JSON object with a type tag.

Client -> Server

	{"type": "join-as-teacher"}
	{"type": "join-as-student", "data": {"name": "Ada"}}
	{"type": "create-poll",     "data": {"question": "2+2=?", "options": ["3","4"],
	                                     "correctAnswers": [false,true], "timer": 30}}
	{"type": "submit-answer",   "data": {"optionIndex": 1}}
	{"type": "send-message",    "data": {"message": "hello"}}
	{"type": "kick-student",    "data": "<participant id>"}

Server -> Client

	{"type": "teacher-joined" | "student-joined", "seq": n, "data": <snapshot>}
	{"type": "participant-joined" | "participant-updated", "seq": n, "data": <participant>}
	{"type": "poll-created" | "poll-updated" | "poll-ended", "seq": n, "data": <poll view>}
	{"type": "answer-submitted", "seq": n, "data": {"currentPoll": <poll view>, "optionIndex": 1}}
	{"type": "new-message", "seq": n, "data": <chat message>}
	{"type": "kicked-out", "seq": n}
	{"type": "error", "data": {"code": "StateError", "message": "...", "request": "submit-answer"}}

Decode turns a raw frame into one of the closed set of Request types; any
frame it cannot map is a validation error and never reaches the coordinator.
*/
package protocol

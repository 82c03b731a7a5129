// Package types is the websocket wire protocol of the draft room.
//
// Every frame is {"type": <event>, "payload": {...}}.
//
// Client -> Server
//
//	join-room:    leagueId, participantId, name, email, avatarUrl
//	leave-room:   leagueId, participantId
//	heartbeat:    leagueId, participantId
//	chat:         leagueId, participantId, message
//	pick-player:  leagueId, participantId, playerId
//	pause-draft:  leagueId, participantId (league owner only)
//	resume-draft: leagueId, participantId (league owner only)
//	get-room:     leagueId, participantId
//
// Server -> Client
//
//	joined-room:   leagueId, name, chats, users, playersPool, draftRoundStarted, draftRoundStatus
//	left-room:     leagueId
//	users-change:  leagueId, users
//	notification:  title, description
//	chat:          leagueId, chat
//	turn-update:   leagueId, ownerId, ownerName, direction, deadline, durationSec
//	player-picked: leagueId, ownerId, playerId, playerName, auto
//	round-status:  leagueId, status, started, paused, completed
//	error:         code, message, request
package types

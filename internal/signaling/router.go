package signaling

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// deliver parses one inbound frame and applies it to code's session.
func (s *shard) deliver(code string, role Role, conn Conn, frame []byte) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		metricMessages.WithLabelValues("invalid").Inc()
		log.Debug().Err(err).Str("module", "signaling").Str("code", code).Str("conn", conn.ID()).Msg("bad envelope")
		s.send(code, conn, errorMessage(ErrTextInvalidFormat))
		return
	}

	metricMessages.WithLabelValues(metricType(msg.Type)).Inc()

	sess, ok := s.reg.get(code)
	if !ok {
		s.send(code, conn, errorMessage(ErrTextSessionNotFound))
		return
	}
	sess.lastActivity = s.now()

	switch msg.Type {
	case TypeOffer:
		if role != RoleCreator {
			metricIgnored.WithLabelValues(TypeOffer).Inc()
			return
		}
		sess.offer = msg.Offer
		s.record(code, "offer_stored", map[string]any{"bytes": len(msg.Offer)})
		if peer := sess.joiner; peer != nil {
			s.send(code, peer, Message{Type: TypeOffer, Offer: msg.Offer})
			metricRelays.WithLabelValues(TypeOffer, "live").Inc()
		}
		s.send(code, conn, Message{Type: TypeOfferStored, Code: code})

	case TypeAnswer:
		if role != RoleJoiner {
			metricIgnored.WithLabelValues(TypeAnswer).Inc()
			return
		}
		sess.answer = msg.Answer
		s.record(code, "answer_stored", map[string]any{"bytes": len(msg.Answer)})
		if peer := sess.creator; peer != nil {
			s.send(code, peer, Message{Type: TypeAnswer, Answer: msg.Answer})
			metricRelays.WithLabelValues(TypeAnswer, "live").Inc()
		}
		s.send(code, conn, Message{Type: TypeAnswerStored})

	case TypePing:
		s.send(code, conn, Message{Type: TypePong})

	default:
		s.send(code, conn, errorMessage(ErrTextUnknownType))
	}
}

// send encodes msg and queues it on conn. Failures are logged and counted;
// they never affect session state.
func (s *shard) send(code string, conn Conn, msg Message) {
	if conn == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signaling").Str("code", code).Str("type", msg.Type).Msg("encode envelope")
		return
	}
	if err := conn.Send(b); err != nil {
		metricSendFailures.Inc()
		log.Warn().Err(err).Str("module", "signaling").Str("code", code).
			Str("conn", conn.ID()).Str("type", msg.Type).Msg("send failed")
	}
}

func metricType(t string) string {
	switch t {
	case TypeOffer, TypeAnswer, TypePing:
		return t
	}
	return "unknown"
}

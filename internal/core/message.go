package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/webrtc/v4"
)

type MessageType string

const (
	TypeRegister   MessageType = "register"
	TypeRegistered MessageType = "registered"
	TypeInitiate   MessageType = "initiate"
	TypeReject     MessageType = "reject"
	TypeStop       MessageType = "stop"
	TypeOffer      MessageType = "offer"
	TypeAnswer     MessageType = "answer"
	TypeCandidate  MessageType = "candidate"
	TypePeers      MessageType = "peers"
	TypePing       MessageType = "ping"
	TypePong       MessageType = "pong"
	TypeError      MessageType = "error"
)

// Call reports whether t belongs to the call protocol relayed between peers.
func (t MessageType) Call() bool {
	switch t {
	case TypeInitiate, TypeReject, TypeStop, TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Message is the single JSON envelope exchanged over the signaling channel.
// Which fields are set depends on Type.
type Message struct {
	Type      MessageType                `json:"type"`
	From      domain.PeerID              `json:"from,omitempty"`
	To        domain.PeerID              `json:"to,omitempty"`
	Role      domain.Role                `json:"role,omitempty"`
	Name      string                     `json:"name,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Status    string                     `json:"status,omitempty"`
	Message   string                     `json:"message,omitempty"`
	Identity  *domain.Identity           `json:"identity,omitempty"`
	Peers     []domain.Peer              `json:"peers,omitempty"`
}

func (m Message) Marshal() (Frame, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type, err)
	}
	return b, nil
}

// DecodeMessage parses one frame and checks the fields its type requires.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (m Message) Validate() error {
	switch m.Type {
	case "":
		return fmt.Errorf("message without type")
	case TypeOffer, TypeAnswer:
		if m.SDP == nil || m.SDP.SDP == "" {
			return fmt.Errorf("%s without sdp", m.Type)
		}
	case TypeCandidate:
		if m.Candidate == nil {
			return fmt.Errorf("candidate without payload")
		}
	case TypeRegister:
		if m.Name == "" || m.Role == "" {
			return fmt.Errorf("register needs name and role")
		}
	}
	return nil
}

func Initiate(role domain.Role) Message { return Message{Type: TypeInitiate, Role: role} }
func Reject() Message                   { return Message{Type: TypeReject} }
func Stop() Message                     { return Message{Type: TypeStop} }

func Offer(sd webrtc.SessionDescription) Message {
	return Message{Type: TypeOffer, SDP: &sd}
}

func Answer(sd webrtc.SessionDescription) Message {
	return Message{Type: TypeAnswer, SDP: &sd}
}

func Candidate(c webrtc.ICECandidateInit) Message {
	return Message{Type: TypeCandidate, Candidate: &c}
}

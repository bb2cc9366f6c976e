// Package packet implements Blaze packet framing: the 12 or 14 byte header and
// the Tdf content list it wraps.
//
// Outbound packets are composed values (*Packet) that own their content.
// Inbound packets are *Buffered views over the decoder's network buffer and
// must be released exactly once.
package packet

import "github.com/danmuck/blazectl/internal/protocol/tdf"

// Frame is anything that can be written as a packet.
type Frame interface {
	Head() Header
	Body() (tdf.Fields, error)
}

// Packet is a composed packet. It owns its content and needs no release.
type Packet struct {
	Header  Header
	Content tdf.Fields
}

func (p *Packet) Head() Header { return p.Header }

func (p *Packet) Body() (tdf.Fields, error) { return p.Content, nil }

// NewRequest builds a request packet.
func NewRequest(component, command, id uint16, content ...tdf.Tdf) *Packet {
	return &Packet{
		Header:  Header{Component: component, Command: command, Type: Request, ID: id},
		Content: content,
	}
}

// NewNotification builds an unsolicited packet. Notifications carry id 0.
func NewNotification(component, command uint16, content ...tdf.Tdf) *Packet {
	return &Packet{
		Header:  Header{Component: component, Command: command, Type: Notification},
		Content: content,
	}
}

// Reply builds the response to req.
func Reply(req Header, content ...tdf.Tdf) *Packet {
	return &Packet{Header: req.Reply(), Content: content}
}

// ReplyError builds an error reply to req.
func ReplyError(req Header, code uint16, content ...tdf.Tdf) *Packet {
	return &Packet{Header: req.ReplyError(code), Content: content}
}

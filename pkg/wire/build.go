package wire

// Builders assemble a sealed, ready-to-send Packet for each message type,
// keeping the flag-value contract of §4.2 in one place instead of scattered
// across the session state machine.

func NewStart(seq uint32, window uint16, kind FlagKind) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeStart, Window: window, Flags: uint8(kind)})
}

func NewAnswer(seq uint32, window uint16, kind FlagKind) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeAnswer, Window: window, Flags: uint8(kind)})
}

func NewFinishRequest(seq uint32, window uint16, kind FlagKind) *Packet {
	flag := FinishMessageRequest
	if kind == KindFile {
		flag = FinishFileRequest
	}
	return Seal(&Packet{SequenceNumber: seq, Type: TypeFinish, Window: window, Flags: uint8(flag)})
}

func NewFinishConfirm(seq uint32, window uint16, kind FlagKind) *Packet {
	flag := FinishMessageConfirm
	if kind == KindFile {
		flag = FinishFileConfirm
	}
	return Seal(&Packet{SequenceNumber: seq, Type: TypeFinish, Window: window, Flags: uint8(flag)})
}

func NewSendData(seq uint32, window uint16, data []byte) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeSendData, Window: window, Payload: data})
}

func NewSendFile(seq uint32, window uint16, nameLen uint16, chunk []byte) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeSendFile, Window: window, NameLength: nameLen, Payload: chunk})
}

func NewConfirmData(seq uint32, window uint16) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeConfirmData, Window: window})
}

func NewConfirmFile(seq uint32, window uint16) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeConfirmFile, Window: window})
}

func NewResend(seq uint32, window uint16, flags uint8) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeResend, Window: window, Flags: flags})
}

func NewKeepAlive(seq uint32, window uint16) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeKeepAlive, Window: window})
}

func NewKeepAliveReply(seq uint32, window uint16) *Packet {
	return Seal(&Packet{SequenceNumber: seq, Type: TypeKeepAliveReply, Window: window})
}

// IsFinishFile reports whether a decoded FINISH packet's flag names a file
// transfer, for either the request or confirm encoding.
func IsFinishFile(flags uint8) bool {
	return FinishFlag(flags) == FinishFileRequest || FinishFlag(flags) == FinishFileConfirm
}

// IsFinishConfirm reports whether a decoded FINISH packet's flag is the
// confirming half of the exchange rather than the initiating half.
func IsFinishConfirm(flags uint8) bool {
	return FinishFlag(flags) == FinishFileConfirm || FinishFlag(flags) == FinishMessageConfirm
}

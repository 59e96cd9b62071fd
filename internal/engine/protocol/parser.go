package protocol

import (
	"FlowTagger/internal/model"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldCount is the number of space-separated fields of a version 2 flow-log line.
const FieldCount = 14

// Field positions of the version 2 default format.
const (
	fieldVersion = iota
	fieldAccountID
	fieldInterfaceID
	fieldSrcAddr
	fieldDstAddr
	fieldSrcPort
	fieldDstPort
	fieldProtocol
	fieldPackets
	fieldBytes
	fieldStart
	fieldEnd
	fieldAction
	fieldLogStatus
)

var (
	// ErrFieldCount is returned for lines that do not have exactly FieldCount fields.
	ErrFieldCount = errors.New("unexpected field count")
	// ErrInvalidField is returned when the destination port or protocol is not an integer.
	ErrInvalidField = errors.New("invalid field")
	// ErrLineTooLong is reported for lines too long to be buffered. They are never parsed.
	ErrLineTooLong = errors.New("line too long")
)

// ParseLine splits a flow-log line into a typed record.
// No partially parsed record is ever returned.
func ParseLine(line string) (*model.FlowRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != FieldCount {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrFieldCount, FieldCount, len(fields))
	}

	dstPort, err := strconv.ParseUint(fields[fieldDstPort], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: dstport %q", ErrInvalidField, fields[fieldDstPort])
	}
	proto, err := strconv.Atoi(fields[fieldProtocol])
	if err != nil {
		return nil, fmt.Errorf("%w: protocol %q", ErrInvalidField, fields[fieldProtocol])
	}

	return &model.FlowRecord{
		Version:     fields[fieldVersion],
		AccountID:   fields[fieldAccountID],
		InterfaceID: fields[fieldInterfaceID],
		SrcAddr:     fields[fieldSrcAddr],
		DstAddr:     fields[fieldDstAddr],
		SrcPort:     fields[fieldSrcPort],
		DstPort:     uint16(dstPort),
		Protocol:    proto,
		Packets:     fields[fieldPackets],
		Bytes:       fields[fieldBytes],
		Start:       fields[fieldStart],
		End:         fields[fieldEnd],
		Action:      fields[fieldAction],
		LogStatus:   fields[fieldLogStatus],
	}, nil
}

package cyphal

// ParseCanId decodes the 29-bit extended identifier into a typed Header,
// following the bit layout in spec section 4.1 / the Cyphal/CAN v1.0 wire
// format:
//
//	28 27 26 | 25 | 24      | 23 22 21 | 20 ... 8         | 7       | 6 ... 0
//	priority | sm | anon/rr | rsvd=000 | subject(13) msg  | rsvd=0  | source(7)
//	priority | sm | rr      | rsvd=000 | service(9) | dest(7)        | source(7)
//
// It mirrors canadensis's parse_can_id (rx.rs): reserved-bit violations are
// the only way this function fails; every other bit pattern is masked into
// its valid range and always produces a header.
func ParseCanId(id CanId, ts Timestamp, tid TransferId) (Header, error) {
	bits := uint32(id)

	if bitSet(bits, 23) {
		return nil, ErrBit23Set
	}

	priority := priorityFromBits(bitsU8(bits, 26, 3))
	sourceBits := bitsU8(bits, 0, 7)
	source, err := NewNodeId(sourceBits)
	if err != nil {
		// sourceBits is masked to 7 bits above, so this is unreachable
		// for any well-formed uint32; kept for symmetry with the
		// fallible constructors used everywhere else.
		return nil, err
	}

	if bitSet(bits, 25) {
		// Service: request or response.
		service, err := NewServiceId(bitsU16(bits, 14, 9))
		if err != nil {
			return nil, err
		}
		destBits := bitsU8(bits, 7, 7)
		dest, err := NewNodeId(destBits)
		if err != nil {
			return nil, err
		}
		sh := ServiceHeader{
			Ts:          ts,
			TID:         tid,
			Prio:        priority,
			Service:     service,
			Source:      source,
			Destination: dest,
		}
		if bitSet(bits, 24) {
			return RequestHeader{sh}, nil
		}
		return ResponseHeader{sh}, nil
	}

	// Message.
	if bitSet(bits, 7) {
		return nil, ErrBit7Set
	}
	subject, err := NewSubjectId(bitsU16(bits, 8, 13))
	if err != nil {
		return nil, err
	}
	mh := MessageHeader{
		Ts:      ts,
		TID:     tid,
		Prio:    priority,
		Subject: subject,
	}
	if !bitSet(bits, 24) {
		// Not anonymous: report the real source node ID.
		src := source
		mh.Source = &src
	}
	return mh, nil
}

// EncodeMessageCanId builds the 29-bit identifier for a published message,
// the inverse of the message branch of ParseCanId. A nil source encodes an
// anonymous publication (bit 24 set); callers of this path additionally
// supply the locally generated pseudo-source-id bits, since an anonymous
// transmitter still has to put something in the low 7 bits of the
// identifier.
func EncodeMessageCanId(priority Priority, subject SubjectId, source *NodeId, anonymousPseudoID uint8) CanId {
	bits := uint32(priority&0x7) << 26
	bits |= uint32(subject&0x1fff) << 8
	if source == nil {
		bits |= 1 << 24
		bits |= uint32(anonymousPseudoID & 0x7f)
	} else {
		bits |= uint32(*source & 0x7f)
	}
	return CanId(bits)
}

// EncodeServiceCanId builds the 29-bit identifier for a service request or
// response.
func EncodeServiceCanId(priority Priority, isRequest bool, service ServiceId, source, destination NodeId) CanId {
	bits := uint32(priority&0x7) << 26
	bits |= 1 << 25
	if isRequest {
		bits |= 1 << 24
	}
	bits |= uint32(service&0x1ff) << 14
	bits |= uint32(destination&0x7f) << 7
	bits |= uint32(source & 0x7f)
	return CanId(bits)
}

package spi

// channel resolves ch for a buffer service, checking the initialization
// state, the id and the buffer kind.
func (d *Driver) channel(api APIID, ch ChannelID, kind BufferKind) (*runState, *ChannelConfig, *Error) {
	rs := d.rs.Load()
	if rs == nil {
		return nil, nil, d.fail(nil, api, ErrUninit)
	}
	if int(ch) >= len(rs.cfg.Channels) {
		return nil, nil, d.fail(rs.cfg, api, ErrParamChannel)
	}
	chCfg := &rs.cfg.Channels[ch]
	if chCfg.Buffer != kind {
		return nil, nil, d.fail(rs.cfg, api, ErrParamChannel)
	}
	return rs, chCfg, nil
}

// WriteIB copies the channel's full internal buffer from src. A nil src
// makes the channel send its default word instead. A src shorter than the
// buffer is rejected; the copy is never partial.
//
// 16-bit elements are taken big-endian from consecutive byte pairs.
func (d *Driver) WriteIB(ch ChannelID, src []byte) error {
	rs, _, err := d.channel(APIWriteIB, ch, InternalBuffer)
	if err != nil {
		return err
	}
	if src == nil {
		rs.ibWritten[ch].Store(false)
		return nil
	}
	buf := rs.ib[ch]
	if len(src) < len(buf) {
		return d.fail(rs.cfg, APIWriteIB, ErrParamLength)
	}
	copy(buf, src)
	rs.ibWritten[ch].Store(true)
	return nil
}

// ReadIB copies the channel's internal buffer into dst and returns the
// number of bytes copied. After a transmission the buffer holds the data
// received for the channel.
func (d *Driver) ReadIB(ch ChannelID, dst []byte) (int, error) {
	rs, _, err := d.channel(APIReadIB, ch, InternalBuffer)
	if err != nil {
		return 0, err
	}
	if dst == nil {
		return 0, d.fail(rs.cfg, APIReadIB, ErrParamPointer)
	}
	buf := rs.ib[ch]
	if rs.cfg.DevErrorDetect && len(dst) < len(buf) {
		return 0, d.fail(rs.cfg, APIReadIB, ErrParamLength)
	}
	return copy(dst, buf), nil
}

// SetupEB binds caller buffers to an external channel for the next
// transmissions. length counts elements and must not exceed the channel's
// Elements nor the configured MaxEBLength. A nil src sends the default
// word; a nil dst discards received data. No data is copied.
func (d *Driver) SetupEB(ch ChannelID, src, dst []byte, length uint16) error {
	rs, chCfg, err := d.channel(APISetupEB, ch, ExternalBuffer)
	if err != nil {
		return err
	}
	limit := rs.cfg.MaxEBLength
	if chCfg.Elements < limit {
		limit = chCfg.Elements
	}
	if length == 0 || length > limit {
		return d.fail(rs.cfg, APISetupEB, ErrParamLength)
	}
	need := int(length) * chCfg.Width.Bytes()
	if (src != nil && len(src) < need) || (dst != nil && len(dst) < need) {
		return d.fail(rs.cfg, APISetupEB, ErrParamLength)
	}
	rs.eb[ch] = ebDescriptor{src: src, dst: dst, length: length}
	return nil
}

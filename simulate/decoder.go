package simulate

// Result is the state a decoder loop leaves behind.
type Result struct {
	Output     []byte
	Steps      int
	Terminated bool
	AH         byte
}

// HeadDecoder is the stage-2 loop. The output HEAD starts as the two hash
// bytes directly in front of the text; decoded bytes overwrite the hash
// and the already consumed text as the head moves forward.
//
//	loop:	imul	$Seed,(%bx,%di),%si
//		xor	%si,(%bx,%di)
//		jns	1f
//		inc	%bx
//	1:	imul	$SeedText,1(%di),%bp
//		inc	%di
//		dec	%bx
//		xor	%bp,(%bx,%di)
//		jne	loop
type HeadDecoder struct {
	Base     uint16
	Seed     uint16
	SeedText uint16
	Hash     uint16
}

func (d HeadDecoder) Decode(text []byte) Result {
	m := NewMachine()
	m.Write16(d.Base, d.Hash)
	m.Load(d.Base+2, text...)
	end := len(text) + 2

	res := Result{}
	for int(m.DI) < end {
		m.Steps++
		head := d.Base + m.BX + m.DI
		m.SI = m.Imul16(d.Seed, head)
		if m.Xor16(head, m.SI)&0x8000 != 0 {
			m.BX++
		}
		m.BP = m.Imul16(d.SeedText, d.Base+1+m.DI)
		m.DI++
		m.BX--
		if m.Xor16(d.Base+m.BX+m.DI, m.BP) == 0 {
			res.Terminated = true
			break
		}
	}
	n := int(int16(m.DI + m.BX))
	if n < 0 {
		n = 0
	}
	res.Output = m.Dump(d.Base, n)
	res.Steps = m.Steps
	return res
}

// AccumDecoder is the stage-3 loop. Each text character, biased by '0',
// is folded into %ah, which is mixed into the output word on the next
// round; a zero %ah ends the sequence.
type AccumDecoder struct {
	Base uint16
	Seed uint16
	Hash uint16
}

func (d AccumDecoder) Decode(text []byte) Result {
	m := NewMachine()
	m.Write16(d.Base, d.Hash)
	m.Load(d.Base+2, text...)
	end := uint16(len(text) + 2)

	code, pos := uint16(0), uint16(2)
	for pos < end {
		m.Steps++
		addr := d.Base + code
		m.SI = m.Imul16(d.Seed, addr)
		w := m.Xor16(addr, m.SI^uint16(m.AH))
		if w&0x8000 != 0 {
			code++
		}
		m.AH ^= m.Read(d.Base+pos) - 0x30
		pos++
	}
	return Result{
		Output:     m.Dump(d.Base, int(code)),
		Steps:      m.Steps,
		Terminated: m.AH == 0,
		AH:         m.AH,
	}
}

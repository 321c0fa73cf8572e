package dnsserver

const (
	// HeaderSize is the fixed DNS header length.
	HeaderSize = 12

	// AnswerSize is the length of the synthetic A record appended to replies.
	AnswerSize = 16

	// PacketSize bounds every datagram read.
	PacketSize = 1024

	// TTL is the lifetime advertised in every answer, in seconds.
	TTL = 0x184c

	// questionTail is the root label plus QTYPE and QCLASS.
	questionTail = 5
)

// replyHeaderTemplate: standard response, recursion desired and available,
// one question, one answer.
var replyHeaderTemplate = [HeaderSize]byte{
	0x00, 0x00, // ID
	0x81, 0x80, // flags
	0x00, 0x01, // QDCOUNT
	0x00, 0x01, // ANCOUNT
	0x00, 0x00, // NSCOUNT
	0x00, 0x00, // ARCOUNT
}

// answerTemplate is a compressed pointer to the question name, TYPE A,
// CLASS IN, TTL and RDLENGTH 4. The address goes in the last four bytes.
var answerTemplate = [AnswerSize]byte{
	0xc0, 0x0c,
	0x00, 0x01,
	0x00, 0x01,
	0x00, 0x00, byte(TTL >> 8), byte(TTL & 0xff),
	0x00, 0x04,
	0x00, 0x00, 0x00, 0x00,
}

// BuildReply answers query with an A record for addr. The transaction ID and
// question are copied from the query without validation; bytes missing from a
// truncated query read as zero, so the reply is malformed but well-bounded.
func BuildReply(query []byte, addr [4]byte) []byte {
	at := func(i int) byte {
		if i < len(query) {
			return query[i]
		}
		return 0
	}

	reply := make([]byte, 0, HeaderSize+64+AnswerSize)

	header := replyHeaderTemplate
	header[0] = at(0)
	header[1] = at(1)
	reply = append(reply, header[:]...)

	// name labels up to the zero-length root label
	i := HeaderSize
	for i < len(query) && i < PacketSize && query[i] != 0 {
		reply = append(reply, query[i])
		i++
	}
	for n := 0; n < questionTail; n++ {
		reply = append(reply, at(i))
		i++
	}

	answer := answerTemplate
	copy(answer[12:], addr[:])
	return append(reply, answer[:]...)
}

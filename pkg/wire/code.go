package wire

import "fmt"

// Code is a CoAP code: a 3-bit class and a 5-bit detail packed into one
// byte. Requests use class 0, responses class 2 (success), 4 (client
// error) or 5 (server error).
type Code uint8

// Request codes.
const (
	CodeEmpty  Code = 0x00
	CodeGET    Code = 0x01
	CodePOST   Code = 0x02
	CodePUT    Code = 0x03
	CodeDELETE Code = 0x04
)

// Response codes.
const (
	CodeCreated Code = 0x41 // 2.01
	CodeDeleted Code = 0x42 // 2.02
	CodeValid   Code = 0x43 // 2.03
	CodeChanged Code = 0x44 // 2.04
	CodeContent Code = 0x45 // 2.05

	CodeBadRequest       Code = 0x80 // 4.00
	CodeUnauthorized     Code = 0x81 // 4.01
	CodeBadOption        Code = 0x82 // 4.02
	CodeForbidden        Code = 0x83 // 4.03
	CodeNotFound         Code = 0x84 // 4.04
	CodeMethodNotAllowed Code = 0x85 // 4.05
	CodeNotAcceptable    Code = 0x86 // 4.06

	CodeInternalServerError Code = 0xA0 // 5.00
	CodeNotImplemented      Code = 0xA1 // 5.01
	CodeServiceUnavailable  Code = 0xA3 // 5.03
)

// Class returns the 3-bit code class.
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the 5-bit code detail.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1F
}

// IsRequest returns true for method codes (class 0, nonzero detail).
func (c Code) IsRequest() bool {
	return c.Class() == 0 && c.Detail() != 0
}

// IsResponse returns true for response codes (class 2, 4 or 5).
func (c Code) IsResponse() bool {
	cl := c.Class()
	return cl == 2 || cl == 4 || cl == 5
}

// IsSuccess returns true for 2.xx response codes.
func (c Code) IsSuccess() bool {
	return c.Class() == 2
}

// String returns the dotted "class.detail" form, with the conventional
// name for codes this server uses.
func (c Code) String() string {
	name := ""
	switch c {
	case CodeEmpty:
		return "0.00 Empty"
	case CodeGET:
		name = " GET"
	case CodePOST:
		name = " POST"
	case CodePUT:
		name = " PUT"
	case CodeDELETE:
		name = " DELETE"
	case CodeChanged:
		name = " Changed"
	case CodeContent:
		name = " Content"
	case CodeBadRequest:
		name = " Bad Request"
	case CodeNotFound:
		name = " Not Found"
	case CodeMethodNotAllowed:
		name = " Method Not Allowed"
	case CodeNotAcceptable:
		name = " Not Acceptable"
	case CodeInternalServerError:
		name = " Internal Server Error"
	case CodeServiceUnavailable:
		name = " Service Unavailable"
	}
	return fmt.Sprintf("%d.%02d%s", c.Class(), c.Detail(), name)
}

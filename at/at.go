package at

const (
	// Terminal Control
	CR     = "\r"
	CRLF   = "\r\n"
	CtrlZ  = "\x1a"
	Esc    = "\x1b"
	Prompt = "> "

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcMessagePush   = "+CMT:"
	UrcNewMsg        = "+CMTI:"
	UrcMessageReport = "+CDSI:"
	UrcCallerID      = "+CLIP:"
	UrcCallerIDAlt   = "+CLIP2:"
	UrcTone          = "+DTMF:"
	UrcCall          = "RING"

	// Data prefixes
	ReadMessage = "+CMGR:"

	// SIM states
	SimReady = "READY"
	SimPin   = "SIM PIN"

	// Commands
	CmdAt            = "AT"
	CmdEchoOff       = "ATE0"
	CmdVerboseErrors = "AT+CMEE=2"
	CmdSimStatus     = "AT+CPIN?"
	CmdSetTextMode   = "AT+CMGF=1"
	CmdNewMsgIndex   = "AT+CNMI=2,1,0,0,0"
	CmdCallerID      = "AT+CLIP=1"
	CmdToneDetect    = "AT+DDET=1,0"
	CmdStorageME     = `AT+CPMS="ME","ME","ME"`
	CmdAnswer        = "ATA"
	CmdHangup        = "ATH"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // SMS input prompt
)

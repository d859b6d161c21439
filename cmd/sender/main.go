// Synthetic producer: frames a sample order notification in MLLP, sends it to
// the gateway and prints the acknowledgment. Integration-test fixture, not
// part of the gateway itself.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/minasoft/hl7-gateway/internal/mllp"
)

const sampleOrder = "MSH|^~\\&|EMR|HOSPITAL|HL7GATEWAY|HL7GATEWAY|%s||ORM^O01|%s|P|2.3\r" +
	"PID|1||12345678||DOE^JOHN||19800115|M|||AV SIEMPREVIVA 742^^SPRINGFIELD^BA||113335555\r" +
	"PV1|1|O\r" +
	"ORC|NW|ORD0001\r" +
	"OBR|1|ORD0001||RX-TORAX^Radiografía de Tórax|||%s\r" +
	"DG1|1|||Control anual\r"

func main() {
	host := flag.String("host", "localhost", "gateway host")
	port := flag.Int("port", 2575, "gateway MLLP port")
	flag.Parse()

	now := time.Now()
	controlID := fmt.Sprintf("TEST%d", now.Unix())
	message := fmt.Sprintf(sampleOrder,
		now.Format("20060102150405"),
		controlID,
		now.Add(24*time.Hour).Format("20060102150405"))

	fmt.Println("Gönderilen mesaj:")
	fmt.Println(strings.ReplaceAll(message, "\r", "\n"))

	client := mllp.NewClient(*host, *port)
	ack, err := client.Send([]byte(message))
	if err != nil {
		fmt.Fprintln(os.Stderr, "gönderme hatası:", err)
		os.Exit(1)
	}

	fmt.Println("Alınan ACK:")
	fmt.Println(strings.ReplaceAll(string(ack), "\r", "\n"))
}

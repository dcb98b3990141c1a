package dispatcher

import (
	"strconv"
	"strings"

	"github.com/raywall/fast-endpoints/pkg/discovery"
)

// ExplorerURL é o endereço do API Explorer hospedado.
const ExplorerURL = "https://apis-explorer.appspot.com/apis-explorer/?base="

// ExplorerRedirectURL monta o redirect para o API Explorer apontando para
// "{scheme}://{server}[:{port}]/{basePath}". A porta 443 implica https;
// qualquer outra, http. A porta padrão do esquema é omitida.
func ExplorerRedirectURL(server string, port int, basePath string) string {
	scheme := "http"
	if port == 443 {
		scheme = "https"
	}

	portStr := ""
	if !(scheme == "http" && port == 80) && !(scheme == "https" && port == 443) && port > 0 {
		portStr = strconv.Itoa(port)
	}
	host := discovery.JoinHost(server, portStr)

	inner := scheme + "://" + host + "/" + strings.Trim(basePath, "/")
	return ExplorerURL + strings.TrimRight(inner, "/")
}

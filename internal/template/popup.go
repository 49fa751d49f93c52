// Package template renders the OAuth callback popup document.
//
// 콜백 응답은 팝업을 연 창(window.opener)에 구조화된 메시지를 postMessage로
// 전달한 뒤 팝업을 닫는다. opener가 없으면 프론트엔드 루트로 이동한다.
// 메시지 형태는 프론트엔드와의 프로토콜 계약이다:
//
//	{ type: 'OAUTH_SUCCESS', token, id, role, provider }
package template

import (
	"html/template"
	"strings"
)

// PopupData - 팝업 스크립트에 주입되는 값
type PopupData struct {
	Token    string
	ID       int64
	Role     string
	Provider string
	// Origin은 postMessage의 targetOrigin이자 opener 부재 시 이동할 주소
	Origin string
}

var popupTmpl = template.Must(template.New("oauth-popup").Parse(`<!DOCTYPE html>
<html>
<head><title>로그인 완료</title></head>
<body>
    <script>
        if (window.opener) {
            window.opener.postMessage({
                type: 'OAUTH_SUCCESS',
                token: '{{.Token}}',
                id: '{{.ID}}',
                role: '{{.Role}}',
                provider: '{{.Provider}}'
            }, '{{.Origin}}');
            window.close();
        } else {
            window.location.href = '{{.Origin}}';
        }
    </script>
    <p>로그인 처리 중...</p>
</body>
</html>
`))

// RenderPopup returns the callback HTML for a completed OAuth login.
func RenderPopup(data PopupData) (string, error) {
	var sb strings.Builder
	if err := popupTmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

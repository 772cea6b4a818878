package xenvelope_test

import (
	"fmt"

	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

func ExampleDecode() {
	res := xenvelope.Decode([]byte(`{"code":200,"data":{"total":3}}`))
	fmt.Println(res.Kind, string(res.Data))

	res = xenvelope.Decode([]byte(`{"code":404,"msg":"用户不存在","traceId":"t-1"}`))
	fmt.Println(res.Kind, res.Code, res.Message, res.TraceID)

	res = xenvelope.Decode([]byte(`{"code":500}`))
	fmt.Println(res.Message)

	res = xenvelope.Decode([]byte(`[1,2,3]`))
	fmt.Println(res.Kind, string(res.Data))
	// Output:
	// success {"total":3}
	// business_error 404 用户不存在 t-1
	// 系统繁忙，请稍后重试
	// raw [1,2,3]
}
